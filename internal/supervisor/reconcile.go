package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkozlov/specbot/internal/telegram"
	"github.com/dkozlov/specbot/internal/transport"
	"github.com/robfig/cron/v3"
)

const reconcileCallTimeout = 30 * time.Second

// Reconciler periodically checks the webhook registration held by the
// Bot API and re-registers when it has drifted (another deployment or a
// stray deleteWebhook clobbered it).
type Reconciler struct {
	client BotAPI
	url    string
	secret string
	logger *slog.Logger
	sched  string
	cron   *cron.Cron
}

// NewReconciler creates a webhook reconciler. schedule accepts standard
// cron expressions and descriptors like "@every 5m".
func NewReconciler(client BotAPI, url, secret, schedule string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		url:    url,
		secret: secret,
		sched:  schedule,
		logger: logger.With("component", "reconciler"),
	}
}

// Start begins the periodic checks. Returns an error if the schedule
// expression does not parse.
func (r *Reconciler) Start() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.sched, r.run); err != nil {
		return fmt.Errorf("reconciler: bad schedule %q: %w", r.sched, err)
	}
	r.cron.Start()
	r.logger.Info("webhook reconciler started", "schedule", r.sched)
	return nil
}

// Stop halts the schedule. A check already in flight finishes on its own.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileCallTimeout)
	defer cancel()

	info, err := r.client.GetWebhookInfo(ctx)
	if err != nil {
		r.logger.Warn("webhook info check failed", "error", err)
		return
	}

	if info.URL == r.url {
		if info.LastErrorMessage != "" {
			r.logger.Warn("webhook delivery errors reported upstream",
				"last_error", info.LastErrorMessage,
				"pending", info.PendingUpdateCount)
		}
		return
	}

	r.logger.Warn("webhook registration drifted, re-registering",
		"have", info.URL, "want", r.url)

	err = r.client.SetWebhook(ctx, telegram.SetWebhookParams{
		URL:            r.url,
		SecretToken:    r.secret,
		AllowedUpdates: transport.AllowedUpdates(),
	})
	if err != nil {
		r.logger.Error("webhook re-registration failed", "error", err)
		return
	}
	r.logger.Info("webhook re-registered", "url", r.url)
}
