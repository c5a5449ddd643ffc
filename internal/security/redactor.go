// Package security keeps credentials out of log output. The bot token
// rides in every Bot API URL, so any error that embeds a request URL
// would leak it without this layer.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a redaction
// placeholder. It matches both regex patterns (known credential
// formats) and literal values (the resolved configuration secrets).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with patterns for the
// credential formats the bot touches.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: defaultPatterns(),
	}
}

// AddLiteral adds a literal secret value that is redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}

	return s
}

func defaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Telegram bot token embedded in a Bot API URL path.
		regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]{20,}`),
		// Bare bot token.
		regexp.MustCompile(`\d{6,}:[A-Za-z0-9_-]{30,}`),
		// Google API key.
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{30,}`),
	}
}
