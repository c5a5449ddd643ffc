package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dkozlov/specbot/internal/metrics"
	"github.com/dkozlov/specbot/internal/store"
	"github.com/dkozlov/specbot/internal/telegram"
)

const (
	maxConsecutivePollErrors = 5
	pollErrorPause           = 30 * time.Second
)

// allowedUpdates limits getUpdates (and webhook delivery) to the update
// kinds the bot actually handles.
var allowedUpdates = []string{"message", "edited_message", "callback_query"}

// AllowedUpdates returns the update kinds both transports subscribe to.
func AllowedUpdates() []string {
	return allowedUpdates
}

// Poller drives the getUpdates long-poll loop. The offset advances only
// after the update was enqueued, so a failed enqueue never skips an
// update (at-least-once across restarts).
type Poller struct {
	client   *telegram.Client
	queue    *Queue
	offsets  store.OffsetStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  int
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a Poller. timeoutSeconds is the long-poll wait
// passed to getUpdates.
func NewPoller(client *telegram.Client, queue *Queue, offsets store.OffsetStore, logger *slog.Logger, m *metrics.Metrics, timeoutSeconds int) *Poller {
	return &Poller{
		client:  client,
		queue:   queue,
		offsets: offsets,
		logger:  logger.With("component", "poller"),
		metrics: m,
		timeout: timeoutSeconds,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	go p.loop()
}

// Stop signals the loop to stop and waits for it to finish. Safe to
// call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
}

func (p *Poller) loop() {
	defer close(p.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()

	offset, err := p.offsets.Load()
	if err != nil {
		p.logger.Warn("offset load failed, starting from 0", "error", err)
		offset = 0
	}
	p.logger.Info("polling started", "offset", offset, "timeout", p.timeout)

	var consecutiveErrors int

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, telegram.GetUpdatesParams{
			Offset:         offset,
			Timeout:        p.timeout,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			p.metrics.PollErrors.Inc()
			p.logger.Error("getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollErrors {
				p.logger.Warn("polling paused after consecutive errors", "pause", pollErrorPause)
				select {
				case <-p.stopCh:
					return
				case <-time.After(pollErrorPause):
				}
				consecutiveErrors = 0
			}
			// The offset is untouched: the failed batch is re-fetched.
			continue
		}

		consecutiveErrors = 0

		for _, upd := range updates {
			err := p.queue.Put(ctx, Update{
				Delivery:   DeliveryPolling,
				ReceivedAt: time.Now(),
				Payload:    upd,
			})
			if err != nil {
				// Enqueue failed (shutdown): stop without advancing the
				// offset so the update is re-delivered next run.
				return
			}
			p.metrics.UpdatesReceived.WithLabelValues(string(DeliveryPolling)).Inc()

			offset = upd.UpdateID + 1
			if err := p.offsets.Save(offset); err != nil {
				p.logger.Warn("offset save failed", "offset", offset, "error", err)
			}
		}
	}
}
