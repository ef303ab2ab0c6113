package blacklist

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and redis-less deployments.
// Expired entries are dropped lazily on lookup and insert.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemory creates an empty in-memory blacklist
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]time.Time)}
}

// Add records a token as revoked until expiresAt
func (m *Memory) Add(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	if time.Now().Before(expiresAt) {
		m.entries[token] = expiresAt
	}
	return nil
}

// Contains reports whether a token has been revoked and is not yet expired
func (m *Memory) Contains(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(m.entries, token)
		return false, nil
	}
	return true, nil
}

func (m *Memory) sweepLocked() {
	now := time.Now()
	for token, expiresAt := range m.entries {
		if now.After(expiresAt) {
			delete(m.entries, token)
		}
	}
}
