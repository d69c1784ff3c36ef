package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"
)

type memEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU bounded by the total size of stored values.
type Memory struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	order    *list.List // front is most recently used
	items    map[string]*list.Element
	now      func() time.Time
}

func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.remove(el)
		return nil, ErrCacheMiss
	}
	m.order.MoveToFront(el)
	return slices.Clone(e.value), nil
}

// Set stores value; a ttl of zero never expires. Values larger than the
// whole cache are not stored.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.remove(el)
	}
	if int64(len(value)) > m.maxBytes {
		return nil
	}
	e := &memEntry{key: key, value: slices.Clone(value)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = m.order.PushFront(e)
	m.size += int64(len(value))
	for m.size > m.maxBytes {
		m.remove(m.order.Back())
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) Close() error { return nil }

func (m *Memory) remove(el *list.Element) {
	e := m.order.Remove(el).(*memEntry)
	delete(m.items, e.key)
	m.size -= int64(len(e.value))
}
