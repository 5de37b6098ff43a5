package activity

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory activity store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
	nextID int64
}

// NewMemoryStore creates a new in-memory activity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) Append(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *event
	cp.ID = m.nextID
	cp.CreatedAt = time.Now().UTC()
	m.nextID++
	m.events = append(m.events, &cp)

	event.ID = cp.ID
	event.CreatedAt = cp.CreatedAt
	return nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	n := len(m.events)
	if limit > n {
		limit = n
	}

	out := make([]*Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *m.events[i]
		out = append(out, &cp)
	}
	return out, nil
}
