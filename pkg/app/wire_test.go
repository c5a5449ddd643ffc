package app

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkozlov/specbot/internal/config"
	"github.com/dkozlov/specbot/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	return &config.Config{
		BotToken:          "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
		Bind:              "127.0.0.1:0",
		QueueSize:         8,
		PollingTimeout:    30,
		DrainTimeout:      5 * time.Second,
		ReconcileSchedule: "@every 5m",
	}
}

func TestWirePollingMode(t *testing.T) {
	sup, cleanup, err := wire(baseConfig(), testLogger())
	if err != nil {
		t.Fatalf("wire() error: %v", err)
	}
	defer cleanup()

	if sup == nil {
		t.Fatal("wire() returned nil supervisor")
	}
	if sup.State() != supervisor.StateStarting {
		t.Errorf("initial state = %v, want starting", sup.State())
	}
}

func TestWireWebhookMode(t *testing.T) {
	cfg := baseConfig()
	cfg.WebhookURL = "https://bot.example.com/tg/callback"
	cfg.WebhookSecret = "shh"

	sup, cleanup, err := wire(cfg, testLogger())
	if err != nil {
		t.Fatalf("wire() error: %v", err)
	}
	defer cleanup()

	if sup == nil {
		t.Fatal("wire() returned nil supervisor")
	}
}

func TestWireSQLiteOffsetStore(t *testing.T) {
	cfg := baseConfig()
	cfg.OffsetPath = filepath.Join(t.TempDir(), "offsets.db")

	_, cleanup, err := wire(cfg, testLogger())
	if err != nil {
		t.Fatalf("wire() error: %v", err)
	}
	cleanup()
}
