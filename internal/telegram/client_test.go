package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getMe" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/botTOKEN/getMe")
		}
		writeJSON(t, w, APIResponse[User]{
			OK:     true,
			Result: User{ID: 42, IsBot: true, FirstName: "Spec", Username: "spec_bot"},
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	user, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if user.Username != "spec_bot" {
		t.Errorf("Username = %q, want %q", user.Username, "spec_bot")
	}
}

func TestGetUpdatesSendsOffset(t *testing.T) {
	var gotOffset atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params GetUpdatesParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotOffset.Store(params.Offset)
		writeJSON(t, w, APIResponse[[]Update]{
			OK:     true,
			Result: []Update{{UpdateID: 7}},
		})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	updates, err := client.GetUpdates(context.Background(), GetUpdatesParams{Offset: 7})
	if err != nil {
		t.Fatalf("GetUpdates() error: %v", err)
	}
	if gotOffset.Load() != 7 {
		t.Errorf("offset sent = %d, want 7", gotOffset.Load())
	}
	if len(updates) != 1 || updates[0].UpdateID != 7 {
		t.Errorf("updates = %+v, want single update 7", updates)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, APIResponse[json.RawMessage]{
			OK:          false,
			ErrorCode:   401,
			Description: "Unauthorized",
		})
	}))
	defer srv.Close()

	client := NewClient("BAD", srv.URL)
	_, err := client.GetMe(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != 401 {
		t.Errorf("Code = %d, want 401", apiErr.Code)
	}
}

func TestRateLimitRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			writeJSON(t, w, APIResponse[json.RawMessage]{
				OK:          false,
				ErrorCode:   429,
				Description: "Too Many Requests",
				Parameters:  &ResponseParameters{RetryAfter: 0},
			})
			return
		}
		writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	if err := client.SetWebhook(context.Background(), SetWebhookParams{URL: "https://x.example/cb"}); err != nil {
		t.Fatalf("SetWebhook() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
}

func TestDeleteWebhookIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/deleteWebhook" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	for i := 0; i < 2; i++ {
		if err := client.DeleteWebhook(context.Background()); err != nil {
			t.Fatalf("DeleteWebhook() error: %v", err)
		}
	}
}

func TestMessageCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "start"},
		{"/start@spec_bot", "start"},
		{"/cancel now", "cancel"},
		{"hello", ""},
		{"", ""},
	}
	for _, tt := range tests {
		msg := &Message{Text: tt.text}
		if got := msg.Command(); got != tt.want {
			t.Errorf("Command(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDocumentIsPDF(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want bool
	}{
		{"mime", &Document{MIMEType: "application/pdf"}, true},
		{"extension", &Document{FileName: "Spec.PDF"}, true},
		{"other", &Document{MIMEType: "image/png", FileName: "scan.png"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.IsPDF(); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}
