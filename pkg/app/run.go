// Package app wires the bot together and runs it: configuration
// resolution, transport selection, and lifecycle supervision.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkozlov/specbot/internal/config"
	"github.com/dkozlov/specbot/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// Empty means env-only configuration.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run resolves configuration, builds the mode-appropriate transport, and
// blocks until SIGINT or SIGTERM triggers a graceful drain.
func Run(params RunParams) error {
	cfg, err := config.Resolve(params.ConfigPath)
	if err != nil {
		return err
	}

	// Wrap the text handler in a redacting handler so the bot token and
	// webhook secret never reach log output, even inside wrapped errors.
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.BotToken)
	redactor.AddLiteral(cfg.WebhookSecret)
	redactor.AddLiteral(cfg.GeminiAPIKey)
	redactor.AddLiteral(cfg.AzureKey)

	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(security.NewRedactingHandler(inner, redactor))
	logger.Info("starting specbot",
		"version", params.Version,
		"mode", string(cfg.Mode()))

	sup, cleanup, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
