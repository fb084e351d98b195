package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/inspectwatch"
	"github.com/jpalmerr/inspectwatch/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the InspectWatch dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the InspectWatch dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Load the current state of every configured evidence photo
  - Trigger analyses of targets marked auto_trigger
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  inspectwatch serve -c config.yaml
  inspectwatch serve --config /etc/inspectwatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"targets", len(cfg.Targets),
		"grids", len(cfg.Grids),
		"projects", len(cfg.Projects),
	)

	targets, err := config.BuildTargets(cfg)
	if err != nil {
		return fmt.Errorf("failed to build targets: %w", err)
	}

	if len(targets) == 0 && len(cfg.Projects) == 0 {
		return errors.New("no targets configured")
	}

	opts := append(config.WatcherOptions(cfg),
		inspectwatch.WithTargets(targets...),
		inspectwatch.WithLogger(logger),
	)

	w, err := inspectwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"max_attempts", cfg.MaxAttempts,
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
