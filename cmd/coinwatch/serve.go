package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/coinwatch"
	"github.com/jpalmerr/coinwatch/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	connectTimeout  = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the coinwatch dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the coinwatch dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Apply COINWATCH_* environment variables and flags on top
  - Load the user's saved watch list from the configured store
  - Poll prices and serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  coinwatch serve -c coinwatch.yaml
  COINWATCH_API_KEY=... coinwatch serve -c coinwatch.yaml --port 9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringP("config", "c", "", "path to config file (required)")
	flags.Int("port", 0, "HTTP port, overrides the config file")
	flags.Duration("poll-interval", 0, "time between price refreshes")
	flags.String("title", "", "dashboard title")
	flags.String("base-url", "", "market data API base URL")
	flags.String("user-id", "", "user id the preferences are stored under")
	flags.String("driver", "", "preference store: file, redis or postgres")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	if err := config.ApplyOverrides(cfg, v); err != nil {
		return fmt.Errorf("invalid overrides: %w", err)
	}

	logger.Info("config loaded",
		"coins", len(cfg.Coins),
		"currencies", cfg.Currencies,
		"persistence", driverName(cfg.Persistence.Driver),
	)

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	store, closeStore, err := config.OpenStore(connectCtx, cfg.Persistence)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	defer closeStore()
	if store != nil {
		opts = append(opts, coinwatch.WithPreferences(store, cfg.Persistence.UserID))
	}

	cw, err := coinwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create coinwatch: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- cw.Start(ctx)
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

func driverName(driver string) string {
	if driver == config.DriverNone {
		return "none"
	}
	return driver
}
