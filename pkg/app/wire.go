package app

import (
	"fmt"
	"log/slog"

	"github.com/dkozlov/specbot/internal/config"
	"github.com/dkozlov/specbot/internal/gateway"
	"github.com/dkozlov/specbot/internal/handler"
	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/dkozlov/specbot/internal/store"
	"github.com/dkozlov/specbot/internal/supervisor"
	"github.com/dkozlov/specbot/internal/telegram"
	"github.com/dkozlov/specbot/internal/transport"
)

// wire assembles the supervisor and its collaborators from resolved
// configuration. The returned cleanup closes resources the supervisor
// does not own (the offset store).
func wire(cfg *config.Config, logger *slog.Logger) (*supervisor.Supervisor, func(), error) {
	client := telegram.NewClient(cfg.BotToken, cfg.APIURL)
	queue := transport.NewQueue(cfg.QueueSize)
	m := metrics.New(func() float64 { return float64(queue.Len()) })

	offsets, err := openOffsetStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := offsets.Close(); err != nil {
			logger.Warn("offset store close failed", "error", err)
		}
	}

	// The gateway asks the supervisor for liveness; the supervisor is
	// built after the gateway, so the health check closes over the
	// pointer and dereferences lazily.
	var sup *supervisor.Supervisor
	alive := func() bool {
		if sup == nil {
			return false
		}
		return sup.Healthy()
	}

	gw := gateway.New(gateway.Config{Bind: cfg.Bind}, logger, m, string(cfg.Mode()), alive)

	params := supervisor.Params{
		Config:   cfg,
		Client:   client,
		Queue:    queue,
		Gateway:  gw,
		Consumer: handler.New(client, logger, m),
		Logger:   logger,
	}

	switch cfg.Mode() {
	case config.ModeWebhook:
		params.Receiver = transport.NewWebhookReceiver(queue, cfg.WebhookSecret, logger, m)
		gw.MountWebhook(cfg.CallbackPath(), params.Receiver)
		params.Reconciler = supervisor.NewReconciler(
			client, cfg.WebhookURL, cfg.WebhookSecret, cfg.ReconcileSchedule, logger)
	case config.ModePolling:
		params.Poller = transport.NewPoller(client, queue, offsets, logger, m, cfg.PollingTimeout)
	}

	sup = supervisor.New(params)
	return sup, cleanup, nil
}

// openOffsetStore picks the polling-offset backend: SQLite when a path
// is configured, in-memory otherwise. Webhook mode never reads it, but
// the store is cheap and keeps wiring uniform.
func openOffsetStore(cfg *config.Config, logger *slog.Logger) (store.OffsetStore, error) {
	if cfg.OffsetPath == "" {
		return store.NewMemory(), nil
	}
	s, err := store.OpenSQLite(cfg.OffsetPath)
	if err != nil {
		return nil, fmt.Errorf("app: open offset store: %w", err)
	}
	logger.Info("offset store opened", "path", cfg.OffsetPath)
	return s, nil
}
