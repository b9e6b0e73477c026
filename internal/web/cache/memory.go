package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Expired entries are dropped on read and
// by a sweeper running every interval until Close.
type Memory struct {
	data   sync.Map
	now    func() time.Time
	cancel context.CancelFunc
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemory creates a memory store sweeping expired entries every interval
func NewMemory(interval time.Duration) *Memory {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{now: time.Now, cancel: cancel}
	if interval > 0 {
		go m.sweep(ctx, interval)
	}
	return m
}

// Get implements Store
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.data.Load(key)
	if !ok {
		return nil, ErrMiss
	}
	item := v.(*memoryItem)
	if m.expired(item) {
		m.data.CompareAndDelete(key, v)
		return nil, ErrMiss
	}
	return item.value, nil
}

// Set implements Store. A non-positive ttl never expires.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item := &memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiration = m.now().Add(ttl)
	}
	m.data.Store(key, item)
	return nil
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired or not
func (m *Memory) Len() int {
	n := 0
	m.data.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Close stops the sweeper
func (m *Memory) Close() {
	m.cancel()
}

func (m *Memory) expired(item *memoryItem) bool {
	return !item.expiration.IsZero() && m.now().After(item.expiration)
}

func (m *Memory) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.purge()
		}
	}
}

func (m *Memory) purge() {
	m.data.Range(func(key, v interface{}) bool {
		if m.expired(v.(*memoryItem)) {
			m.data.CompareAndDelete(key, v)
		}
		return true
	})
}
