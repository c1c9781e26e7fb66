package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/model"
)

// NewOfficialCmd creates the official command group.
func NewOfficialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "official",
		Short: "Manage the officials reports can be assigned to",
	}
	cmd.AddCommand(newOfficialAddCmd())
	cmd.AddCommand(newOfficialListCmd())
	return cmd
}

func newOfficialAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an official or update an existing one",
		Example: `  civicmap official add --id off-1 --name "Asha Rao" --zone ward-7 --department roads`,
		Args:  cobra.NoArgs,
		RunE:  runOfficialAddCmd,
	}

	cmd.Flags().String("id", "", "Official account ID (must match the token subject)")
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("zone", "", "Zone or ward")
	cmd.Flags().String("department", "", "Department")

	return cmd
}

// runOfficialAddCmd executes the official add command.
func runOfficialAddCmd(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	zone, _ := cmd.Flags().GetString("zone")
	department, _ := cmd.Flags().GetString("department")

	official := &model.Official{
		ID:         strings.TrimSpace(id),
		FullName:   strings.TrimSpace(name),
		Zone:       strings.TrimSpace(zone),
		Department: strings.TrimSpace(department),
		CreatedAt:  time.Now().UTC(),
	}
	if official.ID == "" {
		return model.NewValidationError("id", "must not be empty")
	}
	if official.FullName == "" {
		return model.NewValidationError("name", "must not be empty")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.UpsertOfficial(cmdContext(cmd), official); err != nil {
		return err
	}
	logger.Info("official saved", "id", official.ID, "zone", official.Zone)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved official %s (%s)\n", official.ID, official.FullName)
	return nil
}

func newOfficialListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered officials",
		Args:  cobra.NoArgs,
		RunE:  runOfficialListCmd,
	}
}

// runOfficialListCmd executes the official list command.
func runOfficialListCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	officials, err := db.ListOfficials(cmdContext(cmd))
	if err != nil {
		return err
	}
	if len(officials) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No officials registered")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tZONE\tDEPARTMENT")
	for _, o := range officials {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.FullName, dash(o.Zone), dash(o.Department))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
