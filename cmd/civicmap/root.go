package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for civicmap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "civicmap",
		Short: "Civic issue reporting service",
		Long: `civicmap collects geotagged reports of civic issues such as potholes and
broken street lights, tracks each report through an audited status
lifecycle, and serves a heatmap view that clusters nearby reports by
density.

Settings come from .civicmap (current or home directory), CIVICMAP_*
environment variables and flags, in increasing order of precedence.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .civicmap in current or home directory)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory for the database and images (default: XDG data directory)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewNearbyCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewOfficialCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
