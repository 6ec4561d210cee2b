// Package lock serialises mutating actions on a bill across requests.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when the key is already held by a running action.
var ErrHeld = errors.New("action already in progress")

type Guard interface {
	// Acquire takes key for at most ttl. The returned release must be called
	// once the action finishes.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiresAt, ok := m.entries[key]; ok && now.Before(expiresAt) {
		return nil, ErrHeld
	}
	expiresAt := now.Add(ttl)
	m.entries[key] = expiresAt

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if current, ok := m.entries[key]; ok && current.Equal(expiresAt) {
				delete(m.entries, key)
			}
		})
	}, nil
}

var _ Guard = (*Memory)(nil)
