package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/civicmap/internal/config"
	"github.com/nao1215/civicmap/internal/identity"
	"github.com/nao1215/civicmap/internal/imagestore"
	"github.com/nao1215/civicmap/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the civicmap HTTP API until interrupted.

The server stores reports in the data directory and authenticates
requests with bearer tokens signed by the configured token secret
(CIVICMAP_TOKEN_SECRET or identity.tokenSecret in .civicmap).`,
		Example: `  # Serve on the default address
  CIVICMAP_TOKEN_SECRET=change-me-to-a-long-secret civicmap serve

  # Serve on all interfaces with CORS for a web client
  civicmap serve --addr :8080 --cors-origin https://map.example.org`,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	cmd.Flags().Int("max-connections", config.DefaultMaxConnections, "Maximum simultaneous connections")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable)")
	cmd.Flags().Bool("json-log", false, "Write logs as JSON")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg, slog.LevelInfo)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	images, err := imagestore.New(cfg.ImageDir, imagestore.WithMaxSize(cfg.MaxImageSize))
	if err != nil {
		return fmt.Errorf("failed to open image store: %w", err)
	}
	authority, err := identity.New([]byte(cfg.TokenSecret), identity.WithTTL(cfg.TokenTTL))
	if err != nil {
		return fmt.Errorf("failed to create token authority: %w", err)
	}
	reports, err := newLifecycle(cfg, db, images, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Services{
		Lifecycle: reports,
		Nearby:    newNearby(cfg, db, logger),
		Images:    images,
		Identity:  authority,
	}, server.Options{
		Addr:            cfg.Addr,
		MaxConnections:  cfg.MaxConnections,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		CORSOrigins:     cfg.CORSOrigins,
		MaxImageSize:    cfg.MaxImageSize,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting civicmap",
		"version", getVersion(),
		"data_dir", cfg.DataDir,
		"transitions", cfg.TransitionPreset,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("civicmap stopped")
	return nil
}

// buildServeConfig loads the configuration and applies serve flags that
// were set explicitly.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("max-connections") {
		cfg.MaxConnections, _ = flags.GetInt("max-connections")
	}
	if flags.Changed("cors-origin") {
		cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origin")
	}
	if flags.Changed("json-log") {
		cfg.JSONLog, _ = flags.GetBool("json-log")
	}
	return cfg, nil
}
