package transport

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/dkozlov/specbot/internal/telegram"
)

// maxUpdateBytes caps webhook payload reads. Bot API updates are far
// smaller than this.
const maxUpdateBytes = 1 << 20

// secretTokenHeader is set by the Bot API on every webhook delivery
// when a secret token was registered.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookReceiver accepts update payloads pushed by the Bot API. A
// well-formed payload is enqueued and answered 200 immediately;
// ingestion is decoupled from handling. A full queue delays the 200
// (backpressure) instead of dropping the update.
type WebhookReceiver struct {
	queue    *Queue
	secret   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	draining atomic.Bool
}

// NewWebhookReceiver creates a receiver. secret may be empty, in which
// case the secret token header is not checked.
func NewWebhookReceiver(queue *Queue, secret string, logger *slog.Logger, m *metrics.Metrics) *WebhookReceiver {
	return &WebhookReceiver{
		queue:   queue,
		secret:  secret,
		logger:  logger.With("component", "webhook"),
		metrics: m,
	}
}

// SetDraining makes the receiver refuse new updates with 503. Called by
// the supervisor when graceful shutdown begins.
func (wr *WebhookReceiver) SetDraining() {
	wr.draining.Store(true)
}

// ServeHTTP implements http.Handler for the callback path.
func (wr *WebhookReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if wr.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	if wr.secret != "" {
		token := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(wr.secret), []byte(token)) != 1 {
			wr.logger.Warn("webhook delivery with invalid secret token")
			http.Error(w, "invalid secret token", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var upd telegram.Update
	if err := json.Unmarshal(body, &upd); err != nil || upd.UpdateID == 0 {
		wr.metrics.MalformedUpdates.Inc()
		wr.logger.Warn("malformed update payload rejected", "error", err)
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	err = wr.queue.Put(r.Context(), Update{
		Delivery:   DeliveryWebhook,
		ReceivedAt: time.Now(),
		Payload:    upd,
	})
	if err != nil {
		// Queue closed or request cancelled mid-backpressure. The Bot
		// API retries undelivered updates, so nothing is lost.
		http.Error(w, "not accepted", http.StatusServiceUnavailable)
		return
	}
	wr.metrics.UpdatesReceived.WithLabelValues(string(DeliveryWebhook)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
