package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/tieline-bridge/internal/auth"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
)

func newTokenCommand(configFlag *string) *cobra.Command {
	var subject string
	var role string
	var ttl int

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the control endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath(*configFlag))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.AccessTokenTTL
			}
			token, err := mintToken(cfg.Security.JWT.Secret, subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (operator or host name)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "Role: viewer, operator or admin")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Lifetime in minutes (default security.jwt.access_token_ttl)")
	//nolint:errcheck // flag is registered above
	cmd.MarkFlagRequired("subject")

	return cmd
}

// mintToken signs a control token. An empty secret is an error because the
// API would not verify the token anyway.
func mintToken(secret, subject string, role auth.Role, ttlMinutes int) (string, error) {
	if secret == "" {
		return "", errors.New("security.jwt.secret is not set; control endpoints are open")
	}
	return auth.GenerateAccessToken(subject, role, secret, ttlMinutes)
}
