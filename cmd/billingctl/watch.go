package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/chatpay_server/internal/pkg/pubsub"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream subscription events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := c.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeContainer(container, container.Logger())

			client, err := container.Redis()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			err = pubsub.NewSubscriber(client).Subscribe(cmd.Context(), func(evt *pubsub.SubscriptionEvent) {
				if err := enc.Encode(evt); err != nil {
					container.Logger().Warn("failed to write event", "error", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("watch %s: %w", pubsub.ChannelSubscriptionEvents, err)
			}
			return nil
		},
	}
}
