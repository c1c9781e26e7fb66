package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/identity"
	"github.com/nao1215/civicmap/internal/model"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token",
		Long: `Mint a bearer token for the HTTP API, signed with the configured token
secret. The token carries the account ID and role.`,
		Example: `  # Token for an official, valid for the configured TTL
  civicmap token --subject off-1 --role official

  # Short-lived admin token
  civicmap token --subject ops --role admin --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: runTokenCmd,
	}

	cmd.Flags().String("subject", "", "Account ID")
	cmd.Flags().String("role", string(model.RoleCitizen), "Role: citizen, official or admin")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default: configured token TTL)")

	return cmd
}

// runTokenCmd executes the token command.
func runTokenCmd(cmd *cobra.Command, _ []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	roleText, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	role, err := model.ParseRole(roleText)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSecret(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}

	authority, err := identity.New([]byte(cfg.TokenSecret), identity.WithTTL(ttl))
	if err != nil {
		return err
	}
	token, err := authority.Issue(model.Actor{ID: subject, Role: role})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	if getVerboseFlag(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "expires: %s\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	}
	return nil
}
