// Package telegram is a thin HTTP client for the Telegram Bot API,
// covering the methods specbot needs: update retrieval (long polling),
// webhook registration, and message sending.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultAPIURL is the production Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"

	maxAttempts      = 3
	initialRetryWait = time.Second
	maxResponseBytes = 10 << 20 // cap reads from API responses
)

// Client is a thin HTTP wrapper around the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client. An empty baseURL selects the
// production endpoint. The HTTP timeout leaves headroom for the maximum
// long-poll wait (50 s).
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 80 * time.Second,
		},
	}
}

// call sends a JSON POST request to the given Bot API method and decodes
// the response envelope. 429 responses are retried honoring Retry-After,
// up to maxAttempts with exponential backoff.
func call[T any](ctx context.Context, c *Client, method string, payload any) (*T, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
	}

	wait := initialRetryWait

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return nil, fmt.Errorf("telegram: create %s request: %w", method, err)
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Wrap with the method name only; the raw error may embed the
			// token-bearing URL and must not surface in log lines verbatim.
			return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts-1 {
			var envelope APIResponse[json.RawMessage]
			if err := json.Unmarshal(respBody, &envelope); err == nil &&
				envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
				wait = time.Duration(envelope.Parameters.RetryAfter) * time.Second
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			wait *= 2
			continue
		}

		var envelope APIResponse[T]
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
		}

		if !envelope.OK {
			apiErr := &APIError{
				Code:        envelope.ErrorCode,
				Description: envelope.Description,
			}
			if envelope.Parameters != nil {
				apiErr.RetryAfter = envelope.Parameters.RetryAfter
			}
			return nil, apiErr
		}

		return &envelope.Result, nil
	}

	return nil, fmt.Errorf("telegram: %s: max retries exceeded", method)
}

// GetUpdatesParams is the request body for the getUpdates method.
type GetUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// SetWebhookParams is the request body for the setWebhook method.
type SetWebhookParams struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
	MaxConnections int      `json:"max_connections,omitempty"`
}

// SendMessageParams is the request body for the sendMessage method.
type SendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type deleteWebhookParams struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

type sendChatActionParams struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

// GetMe returns the bot's own user information. Used at startup to
// verify the token before any transport is opened.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return call[User](ctx, c, "getMe", nil)
}

// GetUpdates fetches incoming updates using long polling.
func (c *Client) GetUpdates(ctx context.Context, params GetUpdatesParams) ([]Update, error) {
	result, err := call[[]Update](ctx, c, "getUpdates", params)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// SetWebhook registers the given URL with the Bot API for update delivery.
func (c *Client) SetWebhook(ctx context.Context, params SetWebhookParams) error {
	_, err := call[bool](ctx, c, "setWebhook", params)
	return err
}

// DeleteWebhook removes the current webhook registration. The call is
// idempotent: deleting a non-existent webhook succeeds.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", deleteWebhookParams{})
	return err
}

// GetWebhookInfo returns the webhook registration currently held upstream.
func (c *Client) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	return call[WebhookInfo](ctx, c, "getWebhookInfo", nil)
}

// SendMessage sends a text message to the specified chat.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	return call[Message](ctx, c, "sendMessage", params)
}

// SendChatAction sends a chat action (e.g. "typing") to the specified chat.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	_, err := call[bool](ctx, c, "sendChatAction", sendChatActionParams{
		ChatID: chatID,
		Action: action,
	})
	return err
}
