package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/qs3c/chatpay_server/internal/pkg/identity"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		ttl   time.Duration
		email string
	)

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Mint an HS256 ID token for local testing",
		Long: `Mint an ID token signed with identity.secret. The issuer and audience
follow the identity section of the config so the server accepts the token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cfg.Identity.Secret == "" {
				return errors.New("identity.secret is not configured")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			claims := identity.NewClaims(args[0], ttl)
			claims.Email = email
			claims.Issuer = cfg.Identity.IdentityIssuer()
			if aud := cfg.Identity.IdentityAudience(); aud != "" {
				claims.Audience = jwt.ClaimStrings{aud}
			}

			token, err := identity.SignHS256(claims, cfg.Identity.Secret)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
