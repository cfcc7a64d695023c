package auth

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryTokens keeps tokens in process memory. A zero TTL never expires.
type MemoryTokens struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryTokens(ttl time.Duration) *MemoryTokens {
	return NewMemoryTokensWithClock(ttl, time.Now)
}

// NewMemoryTokensWithClock creates a store with a custom clock (for testing).
func NewMemoryTokensWithClock(ttl time.Duration, now func() time.Time) *MemoryTokens {
	return &MemoryTokens{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryTokens) Get(_ context.Context, subject string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[subject]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		// A Set may have replaced the entry since it was read.
		if cur, ok := m.entries[subject]; ok && cur.token == e.token && cur.expires.Equal(e.expires) {
			delete(m.entries, subject)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.token, true, nil
}

func (m *MemoryTokens) Set(_ context.Context, subject, token string) error {
	e := memoryEntry{token: token}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[subject] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokens) Delete(_ context.Context, subject string) error {
	m.mu.Lock()
	delete(m.entries, subject)
	m.mu.Unlock()
	return nil
}
