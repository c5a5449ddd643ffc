package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed indicates the queue was closed and drained.
var ErrQueueClosed = errors.New("transport: queue closed")

// Queue is a bounded in-memory FIFO connecting the active transport to
// the update consumer. Put blocks while the queue is full. The item
// channel is never closed; Close signals through a separate done
// channel, so a Put caught mid-backpressure unblocks with
// ErrQueueClosed instead of panicking.
type Queue struct {
	ch        chan Update
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most size updates.
func NewQueue(size int) *Queue {
	return &Queue{
		ch:   make(chan Update, size),
		done: make(chan struct{}),
	}
}

// Put enqueues an update, blocking while the queue is full. It returns
// ctx.Err() if the context is cancelled first, or ErrQueueClosed if the
// queue has been closed.
func (q *Queue) Put(ctx context.Context, u Update) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Take dequeues the next update in FIFO order, blocking until one is
// available. After Close, buffered updates are still delivered; once
// the queue is empty Take returns ErrQueueClosed.
func (q *Queue) Take(ctx context.Context) (Update, error) {
	select {
	case u := <-q.ch:
		return u, nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	case <-q.done:
		// Closed: drain whatever is buffered, then report end of stream.
		select {
		case u := <-q.ch:
			return u, nil
		default:
			return Update{}, ErrQueueClosed
		}
	}
}

// Close marks the queue closed. Producers should already be stopped;
// any Put still blocked on a full queue returns ErrQueueClosed. Safe to
// call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Len returns the number of updates currently queued.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
