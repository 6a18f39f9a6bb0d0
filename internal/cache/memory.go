package cache

import (
	"context"
	"sync"
	"time"
)

var _ Frontend = (*MemoryFrontend)(nil)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero never expires
}

// MemoryFrontend is a process-local Frontend.
type MemoryFrontend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{} // tag -> keys
	now     func() time.Time
}

func NewMemoryFrontend() *MemoryFrontend {
	return &MemoryFrontend{
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *MemoryFrontend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryFrontend) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (m *MemoryFrontend) FlushByTags(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		for key := range m.tags[tag] {
			delete(m.entries, key)
		}
		delete(m.tags, tag)
	}
	return nil
}

// NullFrontend caches nothing.
type NullFrontend struct{}

func (NullFrontend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NullFrontend) Set(context.Context, string, []byte, time.Duration, ...string) error {
	return nil
}
func (NullFrontend) FlushByTags(context.Context, ...string) error { return nil }
