// Package session keeps the digest of the last image each interactive session
// processed. The marker is per session, never global.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
)

type Store interface {
	// LastDigest returns the session's marker or "" when there is none.
	LastDigest(ctx context.Context, sessionID string) (dedup.Digest, error)
	Remember(ctx context.Context, sessionID string, d dedup.Digest) error
	Close() error
}

type memoryEntry struct {
	digest  dedup.Digest
	expires time.Time
}

// Memory is a process-local Store. A zero TTL keeps markers forever.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) LastDigest(ctx context.Context, sessionID string) (dedup.Digest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sessionID]
	if !ok {
		return "", nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, sessionID)
		return "", nil
	}
	return e.digest, nil
}

func (m *Memory) Remember(ctx context.Context, sessionID string, d dedup.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{digest: d}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[sessionID] = e

	m.evictExpired()
	return nil
}

func (m *Memory) evictExpired() {
	now := m.now()
	for id, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
