package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryTier is an in-process primary tier. It is the default primary
// when no Redis address is configured, and the tier of choice in tests.
type MemoryTier struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	stopChan chan struct{}
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryTier creates an in-memory tier with a background sweeper.
func NewMemoryTier() *MemoryTier {
	t := &MemoryTier{
		items:    make(map[string]memoryItem),
		stopChan: make(chan struct{}),
	}

	go t.sweep()

	return t
}

func (t *MemoryTier) Get(_ context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

func (t *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.items == nil {
		return nil
	}

	t.items[key] = memoryItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

func (t *MemoryTier) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.items, key)

	return nil
}

func (t *MemoryTier) Clear(_ context.Context, prefix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.items {
		if strings.HasPrefix(key, prefix) {
			delete(t.items, key)
		}
	}

	return nil
}

func (t *MemoryTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	close(t.stopChan)
	t.items = nil

	return nil
}

func (t *MemoryTier) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.items == nil {
				t.mu.Unlock()
				return
			}

			now := time.Now()
			for key, item := range t.items {
				if now.After(item.expiresAt) {
					delete(t.items, key)
				}
			}
			t.mu.Unlock()
		}
	}
}
