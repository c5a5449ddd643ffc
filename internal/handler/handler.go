// Package handler consumes updates off the transport queue and turns
// them into Bot API replies.
package handler

import (
	"context"
	"log/slog"

	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/dkozlov/specbot/internal/telegram"
	"github.com/dkozlov/specbot/internal/transport"
)

// Replier is the slice of the Bot API client the handler needs.
type Replier interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

const (
	startReply = "Hi! Send me a PDF document and I'll process it for you.\n" +
		"Commands:\n" +
		"/start - show this message\n" +
		"/cancel - abort the current operation"

	cancelReply = "Nothing in progress. Send a PDF document to get started."

	pdfReply = "Got your document. Processing isn't available yet, " +
		"but it's on the way - check back soon."
)

// Handler processes queued updates one at a time.
type Handler struct {
	replier Replier
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Handler.
func New(replier Replier, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		replier: replier,
		logger:  logger.With("component", "handler"),
		metrics: m,
	}
}

// Handle processes a single update. Errors are logged and counted, never
// returned: one bad update must not stall the queue.
func (h *Handler) Handle(ctx context.Context, u transport.Update) {
	msg := u.Payload.Msg()
	if msg == nil {
		h.logger.Debug("update carries no message, skipping",
			"update_id", u.Payload.UpdateID)
		return
	}

	var reply string
	switch {
	case msg.Command() == "start":
		reply = startReply
	case msg.Command() == "cancel":
		reply = cancelReply
	case msg.Document.IsPDF():
		reply = pdfReply
	default:
		h.logger.Debug("no action for update",
			"update_id", u.Payload.UpdateID, "chat_id", msg.Chat.ID)
		return
	}

	if _, err := h.replier.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	}); err != nil {
		h.metrics.HandlerErrors.Inc()
		h.logger.Error("reply failed",
			"update_id", u.Payload.UpdateID,
			"chat_id", msg.Chat.ID,
			"error", err)
	}
}
