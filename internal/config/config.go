// Package config resolves the bot configuration from the process
// environment, optionally layered over a YAML file with ${VAR}
// expansion. The runtime mode (webhook vs. polling) is derived once
// from the resolved configuration and never changes for the process
// lifetime.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Mode selects the update transport.
type Mode string

const (
	// ModeWebhook receives updates pushed by the Bot API to a public URL.
	ModeWebhook Mode = "webhook"
	// ModePolling actively requests updates via long polling.
	ModePolling Mode = "polling"
)

// ErrMissingToken indicates the bot token is absent. This is
// startup-fatal: no listener may open without it.
var ErrMissingToken = errors.New("config: bot token is required")

// tokenPattern matches the Bot API token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds every value the bot reads from its environment. It is
// constructed once at startup and treated as read-only afterwards.
type Config struct {
	// BotToken authenticates against the Bot API. Required.
	BotToken string `yaml:"bot_token"`

	// APIURL overrides the Bot API endpoint. Used in tests.
	APIURL string `yaml:"api_url"`

	// WebhookURL is the public callback URL. Its presence selects
	// webhook mode; when both transports are configured, webhook wins.
	WebhookURL string `yaml:"webhook_url"`

	// WebhookSecret is sent by the Bot API in the
	// X-Telegram-Bot-Api-Secret-Token header on every delivery.
	WebhookSecret string `yaml:"webhook_secret"`

	// Bind is the local listen address for the HTTP gateway.
	Bind string `yaml:"bind"`

	// PollingTimeout is the getUpdates long-poll wait in seconds (0-50).
	PollingTimeout int `yaml:"polling_timeout"`

	// QueueSize bounds the in-memory update queue. A full queue blocks
	// the producer (backpressure) rather than dropping updates.
	QueueSize int `yaml:"queue_size"`

	// DrainTimeout bounds how long graceful shutdown waits for queued
	// updates to reach the consumer.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// OffsetPath is the SQLite file for polling offset persistence.
	// Empty selects the in-memory store (at-least-once redelivery
	// across restarts is accepted).
	OffsetPath string `yaml:"offset_path"`

	// ReconcileSchedule is the cron expression for the webhook
	// registration reconciler. Empty disables it.
	ReconcileSchedule string `yaml:"reconcile_schedule"`

	// Downstream service credentials, passed through to the document
	// processing worker. Opaque to this process.
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	AzureEndpoint string `yaml:"azure_di_endpoint"`
	AzureKey      string `yaml:"azure_di_key"`
	Bucket        string `yaml:"bucket"`
}

// Mode returns the transport mode. Webhook mode is selected iff a
// non-empty public callback URL is configured.
func (c *Config) Mode() Mode {
	if strings.TrimSpace(c.WebhookURL) != "" {
		return ModeWebhook
	}
	return ModePolling
}

// CallbackPath returns the local HTTP path the webhook listener mounts,
// derived from the path component of the public callback URL. Falls
// back to "/webhook" when the URL carries no path.
func (c *Config) CallbackPath() string {
	u, err := url.Parse(c.WebhookURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/webhook"
	}
	return u.Path
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = ":8080"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-1.5-pro-latest"
	}
	if c.ReconcileSchedule == "" {
		c.ReconcileSchedule = "@every 5m"
	}
}

// Validate checks the resolved configuration. All problems are reported
// at once via errors.Join. A missing bot token maps to ErrMissingToken.
func (c *Config) Validate() error {
	var errs []error

	if c.BotToken == "" {
		errs = append(errs, ErrMissingToken)
	} else if !tokenPattern.MatchString(c.BotToken) {
		errs = append(errs, errors.New("config: bot token format invalid (expected <bot_id>:<hash>)"))
	}

	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: webhook_url must be a valid https URL, got %q", c.WebhookURL))
		}
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("config: api_url must be a valid http/https URL, got %q", c.APIURL))
		}
	}

	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid bind address %q", c.Bind))
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		errs = append(errs, fmt.Errorf("config: polling_timeout must be 0-50, got %d", c.PollingTimeout))
	}

	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("config: queue_size must be positive, got %d", c.QueueSize))
	}

	return errors.Join(errs...)
}
