package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/model/dto"
	"github.com/qs3c/chatpay_server/internal/service"
)

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <userId>",
		Short: "Show a user's subscription, token budget and payment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeContainer(container, container.Logger())

			ctx := cmd.Context()
			store, err := container.Store(ctx)
			if err != nil {
				return err
			}

			userID := args[0]
			view, err := service.NewSubscriptionService(store, nil, nil, nil, container.Logger()).Get(ctx, userID)
			if err != nil {
				return fmt.Errorf("get subscription: %w", err)
			}
			budget, err := service.NewQuotaService(store).GetBudget(ctx, userID)
			if err != nil {
				return fmt.Errorf("get token budget: %w", err)
			}
			activations, err := store.ListActivations(ctx, userID)
			if err != nil {
				return fmt.Errorf("list activations: %w", err)
			}

			printSubscription(cmd.OutOrStdout(), userID, view, budget, activations)
			return nil
		},
	}
}

func printSubscription(w io.Writer, userID string, view *dto.SubscriptionView, budget *dto.QuotaInfo, activations []model.SubscriptionActivation) {
	fmt.Fprintf(w, "User: %s\n", userID)
	fmt.Fprintf(w, "  Plan:        %s\n", view.PlanID)
	fmt.Fprintf(w, "  Status:      %s\n", view.Status)
	if view.StartDate != nil {
		fmt.Fprintf(w, "  Start:       %s\n", view.StartDate.UTC().Format(time.RFC3339))
	}
	if view.EndDate != nil {
		fmt.Fprintf(w, "  End:         %s\n", view.EndDate.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Token limit: %d (%s)\n", budget.TokenLimit, budget.PlanID)

	if len(activations) == 0 {
		fmt.Fprintln(w, "  Payments:    none")
		return
	}
	fmt.Fprintln(w, "  Payments:")
	for _, a := range activations {
		fmt.Fprintf(w, "    %s  %-8s %s %s\n", a.ActivatedAt.UTC().Format(time.RFC3339), a.PlanID, a.OrderID, a.PaymentID)
	}
}
