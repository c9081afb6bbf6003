package session

import (
	"context"
	"sync"
	"time"
)

type item struct {
	value     string
	updatedAt time.Time
}

// MemoryStore keeps session items in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]item
	now   func() time.Time
}

var _ Storage = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[string]item),
		now:   time.Now,
	}
}

func (m *MemoryStore) SetItem(_ context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.items[sessionID]
	if !ok {
		sess = make(map[string]item)
		m.items[sessionID] = sess
	}
	sess[key] = item{value: value, updatedAt: m.now()}
	return nil
}

func (m *MemoryStore) GetItem(_ context.Context, sessionID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[sessionID][key]
	return it.value, ok, nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, sessionID)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for sid, sess := range m.items {
		for key, it := range sess {
			if it.updatedAt.Before(cutoff) {
				delete(sess, key)
				removed++
			}
		}
		if len(sess) == 0 {
			delete(m.items, sid)
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
