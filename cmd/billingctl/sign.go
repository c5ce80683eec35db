package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/chatpay_server/internal/pkg/signature"
)

func newSignCmd(c *cli) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign <orderId> <paymentId>",
		Short: "Print the payment signature for an order and payment",
		Long: `Compute the signature the payment gateway attaches to a successful payment.
Useful for calling the verify endpoint by hand.

Examples:
  billingctl sign order_Kx1 pay_Kx9
  billingctl sign order_Kx1 pay_Kx9 --secret rzp_test_secret`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := c.config()
				if err != nil {
					return err
				}
				secret = cfg.Payment.KeySecret
			}
			if secret == "" {
				return errors.New("payment key secret is not configured, pass --secret")
			}

			fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(secret, args[0], args[1]))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "payment key secret (defaults to payment.key_secret)")
	return cmd
}
