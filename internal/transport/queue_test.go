package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkozlov/specbot/internal/telegram"
)

func update(id int64) Update {
	return Update{
		Delivery:   DeliveryPolling,
		ReceivedAt: time.Now(),
		Payload:    telegram.Update{UpdateID: id},
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := q.Put(ctx, update(i)); err != nil {
			t.Fatalf("Put(%d) error: %v", i, err)
		}
	}

	for i := int64(1); i <= 3; i++ {
		u, err := q.Take(ctx)
		if err != nil {
			t.Fatalf("Take() error: %v", err)
		}
		if u.Payload.UpdateID != i {
			t.Errorf("Take() = update %d, want %d", u.Payload.UpdateID, i)
		}
	}
}

func TestQueuePutBlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	if err := q.Put(ctx, update(1)); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// Second Put must block until a Take makes room.
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Put(ctx, update(2))
	}()

	select {
	case err := <-unblocked:
		t.Fatalf("Put() returned %v before Take, want block", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Take(ctx); err != nil {
		t.Fatalf("Take() error: %v", err)
	}

	select {
	case err := <-unblocked:
		if err != nil {
			t.Fatalf("Put() after Take error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Put() still blocked after Take")
	}
}

func TestQueuePutRespectsContext(t *testing.T) {
	q := NewQueue(1)
	if err := q.Put(context.Background(), update(1)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Put(ctx, update(2))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Put() error = %v, want DeadlineExceeded", err)
	}
}

func TestQueueCloseDrainsBuffered(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()

	if err := q.Put(ctx, update(1)); err != nil {
		t.Fatal(err)
	}
	if err := q.Put(ctx, update(2)); err != nil {
		t.Fatal(err)
	}

	q.Close()

	// Buffered updates are still deliverable after Close.
	for i := int64(1); i <= 2; i++ {
		u, err := q.Take(ctx)
		if err != nil {
			t.Fatalf("Take() after Close error: %v", err)
		}
		if u.Payload.UpdateID != i {
			t.Errorf("Take() = update %d, want %d", u.Payload.UpdateID, i)
		}
	}

	if _, err := q.Take(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Take() on drained queue = %v, want ErrQueueClosed", err)
	}
	if err := q.Put(ctx, update(3)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Put() on closed queue = %v, want ErrQueueClosed", err)
	}
}

func TestQueueCloseUnblocksPendingPut(t *testing.T) {
	q := NewQueue(1)
	if err := q.Put(context.Background(), update(1)); err != nil {
		t.Fatal(err)
	}

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Put(context.Background(), update(2))
	}()
	time.Sleep(20 * time.Millisecond)

	q.Close()

	select {
	case err := <-unblocked:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("blocked Put() = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Put() still blocked after Close")
	}
}

func TestQueueCloseIdempotent(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // must not panic
}
