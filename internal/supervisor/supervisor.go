// Package supervisor owns the bot's lifecycle: transport selection and
// startup ordering, the update consumer loop, and graceful drain on
// shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dkozlov/specbot/internal/config"
	"github.com/dkozlov/specbot/internal/gateway"
	"github.com/dkozlov/specbot/internal/telegram"
	"github.com/dkozlov/specbot/internal/transport"
)

// State is the supervisor's lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateActive
	StateDraining
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	webhookRegisterAttempts = 5
	webhookRegisterBackoff  = time.Second
)

// BotAPI is the slice of the Telegram client the supervisor uses for
// startup verification and webhook management.
type BotAPI interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	SetWebhook(ctx context.Context, params telegram.SetWebhookParams) error
	DeleteWebhook(ctx context.Context) error
	GetWebhookInfo(ctx context.Context) (*telegram.WebhookInfo, error)
}

// Consumer processes one queued update.
type Consumer interface {
	Handle(ctx context.Context, u transport.Update)
}

// Params carries the supervisor's collaborators. Poller and Receiver are
// mode-dependent: exactly one of them is non-nil.
type Params struct {
	Config   *config.Config
	Client   BotAPI
	Queue    *transport.Queue
	Gateway  *gateway.Server
	Poller   *transport.Poller
	Receiver *transport.WebhookReceiver
	Consumer Consumer
	Logger   *slog.Logger

	// Reconciler is optional; webhook mode only.
	Reconciler *Reconciler
}

// Supervisor drives the bot through starting, active, draining, and
// stopped phases.
type Supervisor struct {
	cfg        *config.Config
	client     BotAPI
	queue      *transport.Queue
	gateway    *gateway.Server
	poller     *transport.Poller
	receiver   *transport.WebhookReceiver
	consumer   Consumer
	reconciler *Reconciler
	logger     *slog.Logger

	state atomic.Int32

	consumerCtx    context.Context
	consumerCancel context.CancelFunc
	consumerDone   chan struct{}
}

// New creates a Supervisor in the starting state.
func New(p Params) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:            p.Config,
		client:         p.Client,
		queue:          p.Queue,
		gateway:        p.Gateway,
		poller:         p.Poller,
		receiver:       p.Receiver,
		consumer:       p.Consumer,
		reconciler:     p.Reconciler,
		logger:         p.Logger.With("component", "supervisor"),
		consumerCtx:    ctx,
		consumerCancel: cancel,
		consumerDone:   make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Info("state changed", "state", st.String())
}

// Healthy reports whether the bot is accepting updates. Wired into the
// gateway's /health endpoint.
func (s *Supervisor) Healthy() bool {
	st := s.State()
	return st == StateStarting || st == StateActive
}

// Start verifies the token, brings up the mode-appropriate transport,
// and launches the consumer loop. Any returned error is fatal: the
// process must not keep running half-started.
func (s *Supervisor) Start(ctx context.Context) error {
	s.setState(StateStarting)

	me, err := s.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: token verification failed: %w", err)
	}
	s.logger.Info("authenticated", "bot", me.Username, "id", me.ID)

	switch s.cfg.Mode() {
	case config.ModeWebhook:
		// The webhook must be registered before we accept callbacks;
		// otherwise Telegram has nowhere to deliver and we would serve
		// a route nobody calls.
		if err := s.registerWebhook(ctx); err != nil {
			return err
		}
		if err := s.gateway.Start(); err != nil {
			return fmt.Errorf("supervisor: %w", err)
		}

	case config.ModePolling:
		// A lingering webhook registration makes getUpdates return 409.
		if err := s.removeWebhook(ctx); err != nil {
			return err
		}
		if err := s.gateway.Start(); err != nil {
			return fmt.Errorf("supervisor: %w", err)
		}
		s.poller.Start()
	}

	go s.consumeLoop()

	if s.reconciler != nil {
		if err := s.reconciler.Start(); err != nil {
			return fmt.Errorf("supervisor: %w", err)
		}
	}

	s.setState(StateActive)
	s.logger.Info("bot running", "mode", string(s.cfg.Mode()))
	return nil
}

// Run starts the supervisor and blocks until ctx is cancelled, then
// performs a graceful shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	s.logger.Info("shutdown signal received")

	return s.Shutdown(context.Background())
}

// Shutdown drains gracefully: stop the producer, let the consumer empty
// the queue, then stop serving. The webhook registration is left in
// place so a restarted instance resumes without re-registering.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.setState(StateDraining)

	// Stop producing first. In webhook mode new POSTs get 503; in
	// polling mode the loop exits after its in-flight request.
	if s.receiver != nil {
		s.receiver.SetDraining()
	}
	if s.poller != nil {
		s.poller.Stop()
	}
	if s.reconciler != nil {
		s.reconciler.Stop()
	}

	// No producers remain; close the queue so the consumer sees the end
	// of the stream once the buffer is empty.
	s.queue.Close()

	var drainErr error
	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-s.consumerDone:
	case <-timer.C:
		s.logger.Warn("drain timeout elapsed, abandoning queued updates",
			"remaining", s.queue.Len())
		s.consumerCancel()
		<-s.consumerDone
		drainErr = errors.New("supervisor: drain timeout exceeded")
	}

	if err := s.gateway.Stop(ctx); err != nil {
		s.logger.Error("gateway stop failed", "error", err)
	}

	s.setState(StateStopped)
	return drainErr
}

// consumeLoop takes updates off the queue until it is closed and drained
// or the consumer context is cancelled.
func (s *Supervisor) consumeLoop() {
	defer close(s.consumerDone)

	for {
		u, err := s.queue.Take(s.consumerCtx)
		if err != nil {
			if !errors.Is(err, transport.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				s.logger.Error("queue take failed", "error", err)
			}
			return
		}
		s.consumer.Handle(s.consumerCtx, u)
	}
}

// registerWebhook calls setWebhook with exponential backoff. All
// attempts exhausted is fatal.
func (s *Supervisor) registerWebhook(ctx context.Context) error {
	params := telegram.SetWebhookParams{
		URL:            s.cfg.WebhookURL,
		SecretToken:    s.cfg.WebhookSecret,
		AllowedUpdates: transport.AllowedUpdates(),
	}

	err := withRetry(ctx, s.logger, "setWebhook", webhookRegisterAttempts, webhookRegisterBackoff, func() error {
		return s.client.SetWebhook(ctx, params)
	})
	if err != nil {
		return fmt.Errorf("supervisor: webhook registration failed: %w", err)
	}

	s.logger.Info("webhook registered", "url", s.cfg.WebhookURL)
	return nil
}

// removeWebhook clears any prior registration before polling begins.
func (s *Supervisor) removeWebhook(ctx context.Context) error {
	err := withRetry(ctx, s.logger, "deleteWebhook", webhookRegisterAttempts, webhookRegisterBackoff, func() error {
		return s.client.DeleteWebhook(ctx)
	})
	if err != nil {
		return fmt.Errorf("supervisor: webhook removal failed: %w", err)
	}
	return nil
}

// withRetry runs fn up to attempts times with doubling backoff starting
// at wait.
func withRetry(ctx context.Context, logger *slog.Logger, op string, attempts int, wait time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logger.Warn("retrying after failure",
			"op", op, "attempt", attempt, "wait", wait.String(), "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}

	return err
}
