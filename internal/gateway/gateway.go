// Package gateway is the bot's HTTP surface: the liveness endpoint, the
// Prometheus metrics endpoint, and (in webhook mode) the Bot API
// callback route.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Config holds the HTTP gateway configuration.
type Config struct {
	Bind            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults. The write timeout
// must exceed the worst-case backpressure wait on the webhook route.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server is the HTTP gateway. It runs in both transport modes; the
// webhook route is mounted only when webhook mode is active.
type Server struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// alive reports whether the transport receive loop is running.
	// Consulted by the health endpoint on every request.
	alive func() bool

	mode string

	webhookPath    string
	webhookHandler http.Handler

	server *http.Server
}

// New creates a gateway. mode is reported verbatim in health responses.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, mode string, alive func() bool) *Server {
	cfg.defaults()
	return &Server{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		metrics: m,
		alive:   alive,
		mode:    mode,
	}
}

// MountWebhook registers the Bot API callback handler on the given
// path. Must be called before Start.
func (s *Server) MountWebhook(path string, h http.Handler) {
	s.webhookPath = path
	s.webhookHandler = h
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	mux := s.buildRouter()

	s.server = &http.Server{
		Addr:         s.config.Bind,
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("gateway listening", "addr", s.config.Bind, "mode", s.mode)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())
	r.Handle("/metrics", s.metrics.Handler())

	if s.webhookHandler != nil {
		r.Post(s.webhookPath, s.webhookHandler.ServeHTTP)
	}

	return r
}
