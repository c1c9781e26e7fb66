package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history REPORT_ID",
		Short: "Show the status ledger of a report",
		Long: `Show a report's current state and every status change recorded for it,
oldest first, with the actor and comment of each change.`,
		Example: `  civicmap history 3f1c2a9e-6b7d-4c1e-9a55-0d2f7e8b1c44
  civicmap history 3f1c2a9e-6b7d-4c1e-9a55-0d2f7e8b1c44 --format markdown -o history.md`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText), "Output format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write output to file instead of stdout")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
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

	reports, err := newLifecycle(cfg, db, nil, logger)
	if err != nil {
		return err
	}
	ctx := cmdContext(cmd)
	r, err := reports.Get(ctx, args[0], false)
	if err != nil {
		return err
	}
	history, err := reports.History(ctx, r.ID)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	out, closeOut, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	w, err := report.NewWriter(format, out)
	if err != nil {
		_ = closeOut()
		return err
	}
	if _, err := w.WriteHistory(r, history); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to write history: %w", err)
	}
	return closeOut()
}
