package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/dkozlov/specbot/internal/telegram"
	"github.com/dkozlov/specbot/internal/transport"
)

type fakeReplier struct {
	sent []telegram.SendMessageParams
	err  error
}

func (f *fakeReplier) SendMessage(_ context.Context, params telegram.SendMessageParams) (*telegram.Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &telegram.Message{MessageID: 1}, nil
}

func (f *fakeReplier) SendChatAction(context.Context, int64, string) error {
	return nil
}

func newHandler(f *fakeReplier) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(f, logger, metrics.New(func() float64 { return 0 }))
}

func msgUpdate(text string) transport.Update {
	return transport.Update{
		Delivery:   transport.DeliveryPolling,
		ReceivedAt: time.Now(),
		Payload: telegram.Update{
			UpdateID: 1,
			Message: &telegram.Message{
				MessageID: 10,
				Chat:      telegram.Chat{ID: 42, Type: "private"},
				Text:      text,
			},
		},
	}
}

func TestStartCommand(t *testing.T) {
	f := &fakeReplier{}
	newHandler(f).Handle(context.Background(), msgUpdate("/start"))

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	if f.sent[0].ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", f.sent[0].ChatID)
	}
	if !strings.Contains(f.sent[0].Text, "/cancel") {
		t.Errorf("start reply missing command list: %q", f.sent[0].Text)
	}
}

func TestStartCommandWithBotSuffix(t *testing.T) {
	f := &fakeReplier{}
	newHandler(f).Handle(context.Background(), msgUpdate("/start@specbot"))

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
}

func TestCancelCommand(t *testing.T) {
	f := &fakeReplier{}
	newHandler(f).Handle(context.Background(), msgUpdate("/cancel"))

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	if !strings.Contains(f.sent[0].Text, "Nothing in progress") {
		t.Errorf("cancel reply = %q", f.sent[0].Text)
	}
}

func TestPDFDocumentAcknowledged(t *testing.T) {
	f := &fakeReplier{}
	u := transport.Update{
		Payload: telegram.Update{
			UpdateID: 2,
			Message: &telegram.Message{
				Chat: telegram.Chat{ID: 7},
				Document: &telegram.Document{
					FileID:   "abc",
					FileName: "report.pdf",
					MIMEType: "application/pdf",
				},
			},
		},
	}
	newHandler(f).Handle(context.Background(), u)

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	if f.sent[0].ChatID != 7 {
		t.Errorf("ChatID = %d, want 7", f.sent[0].ChatID)
	}
}

func TestPlainTextIgnored(t *testing.T) {
	f := &fakeReplier{}
	newHandler(f).Handle(context.Background(), msgUpdate("just chatting"))

	if len(f.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(f.sent))
	}
}

func TestMessagelessUpdateIgnored(t *testing.T) {
	f := &fakeReplier{}
	newHandler(f).Handle(context.Background(), transport.Update{
		Payload: telegram.Update{UpdateID: 3},
	})

	if len(f.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(f.sent))
	}
}

func TestReplyErrorDoesNotPanic(t *testing.T) {
	f := &fakeReplier{err: errors.New("network down")}
	newHandler(f).Handle(context.Background(), msgUpdate("/start"))

	if len(f.sent) != 1 {
		t.Errorf("sent %d attempts, want 1", len(f.sent))
	}
}
