package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/cluster"
	"github.com/nao1215/civicmap/internal/config"
	"github.com/nao1215/civicmap/internal/database"
	"github.com/nao1215/civicmap/internal/imagestore"
	"github.com/nao1215/civicmap/internal/lifecycle"
	clog "github.com/nao1215/civicmap/internal/log"
	"github.com/nao1215/civicmap/internal/nearby"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration from the file, the environment and
// the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
		cfg.SetDataDir(f.Value.String())
	}
	if getVerboseFlag(cmd) {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newLogger creates the secure logger for a command. base is the level
// used without --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, base slog.Level) *slog.Logger {
	level := clog.Level(cfg.Verbose, base)
	if cfg.JSONLog {
		return clog.NewSecureJSONLogger(cmd.ErrOrStderr(), level)
	}
	return clog.NewSecureLogger(cmd.ErrOrStderr(), level)
}

// openDB opens the report database in the configured data directory.
func openDB(cfg *config.Config) (*database.ReportDB, error) {
	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database in %s: %w", cfg.DataDir, err)
	}
	return db, nil
}

// newLifecycle wires the lifecycle service to the store and policy.
func newLifecycle(cfg *config.Config, db *database.ReportDB, images *imagestore.Store, logger *slog.Logger) (*lifecycle.Service, error) {
	table, err := cfg.TransitionTable()
	if err != nil {
		return nil, err
	}
	opts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithTransitionTable(table),
		lifecycle.WithOwnerWindow(cfg.OwnerWindow),
	}
	if images != nil {
		opts = append(opts, lifecycle.WithImageRemover(images))
	}
	return lifecycle.NewService(db, opts...), nil
}

// newNearby wires the nearby service to the store.
func newNearby(cfg *config.Config, db *database.ReportDB, logger *slog.Logger) *nearby.Service {
	return nearby.NewService(db,
		nearby.WithEngine(cluster.NewEngine(cluster.WithThreshold(cfg.ClusterThresholdKM))),
		nearby.WithConcurrency(cfg.Concurrency),
		nearby.WithLogger(logger),
	)
}

// openOutput returns the destination for command output: the file at
// path, created with its parent directories, or w when path is empty.
// The returned close function is always safe to call.
func openOutput(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return w, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// cmdContext returns the command context, or Background when the command
// runs outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
