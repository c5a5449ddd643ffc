// Package store persists the polling offset, the update_id the poller
// will request next. The in-memory store accepts at-least-once
// redelivery across restarts; the SQLite store survives them.
package store

import "sync"

// OffsetStore persists the next getUpdates offset.
type OffsetStore interface {
	// Load returns the stored offset, or 0 when none has been saved.
	Load() (int64, error)

	// Save records the offset. Called only after the corresponding
	// update was successfully enqueued.
	Save(offset int64) error

	// Close releases any underlying resources.
	Close() error
}

// Memory is a process-local OffsetStore. Restarting the process resets
// the offset to 0, so already-delivered updates may be seen again.
type Memory struct {
	mu     sync.Mutex
	offset int64
}

// NewMemory creates an empty in-memory offset store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements OffsetStore.
func (m *Memory) Load() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset, nil
}

// Save implements OffsetStore.
func (m *Memory) Save(offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = offset
	return nil
}

// Close implements OffsetStore.
func (m *Memory) Close() error { return nil }
