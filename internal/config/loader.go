package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Resolve produces the final Config. When path is non-empty the YAML
// file is loaded first (with ${VAR} expansion); environment variables
// are then applied on top, so the environment always wins. Defaults
// and validation run last.
func Resolve(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyEnv()
	cfg.defaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML configuration file, expands environment variables,
// and parses it into a Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML
// bytes. Returns an error listing every unresolved variable.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}

// applyEnv overrides config fields from the process environment.
// PORT (set by Cloud Run and Railway) maps to the bind address when no
// explicit BIND is given.
func (c *Config) applyEnv() {
	setString(&c.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.APIURL, "TELEGRAM_API_URL")
	setString(&c.WebhookURL, "WEBHOOK_URL")
	setString(&c.WebhookSecret, "WEBHOOK_SECRET")
	setString(&c.Bind, "BIND")
	setString(&c.OffsetPath, "OFFSET_DB")
	setString(&c.ReconcileSchedule, "RECONCILE_SCHEDULE")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL_NAME")
	setString(&c.AzureEndpoint, "AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT")
	setString(&c.AzureKey, "AZURE_DOCUMENT_INTELLIGENCE_KEY")
	setString(&c.Bucket, "GCS_BUCKET_NAME")

	if c.Bind == "" {
		if port, ok := os.LookupEnv("PORT"); ok && port != "" {
			c.Bind = ":" + port
		}
	}

	if v, ok := os.LookupEnv("POLLING_TIMEOUT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollingTimeout = n
		}
	}
	if v, ok := os.LookupEnv("QUEUE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueSize = n
		}
	}
	if v, ok := os.LookupEnv("DRAIN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
