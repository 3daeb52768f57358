package codestore

import (
	"context"
	"sync"
	"time"

	"github.com/go-user-registration/internal/domain"
)

// DefaultTTL is used when a store is built with a non-positive TTL.
const DefaultTTL = 60 * time.Second

type entry struct {
	code      string
	expiresAt time.Time
}

// Memory is an in-process code store. It is only suitable when the API and
// the publisher share a process, which is always the case for cmd/api.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

// NewMemoryWithClock lets tests control expiry.
func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{entries: make(map[string]entry), ttl: ttl, now: now}
}

func (m *Memory) Save(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[domain.NormalizeEmail(email)] = entry{code: code, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Get reports ok=false for missing and expired entries. Expired entries are
// removed on the way out.
func (m *Memory) Get(_ context.Context, email string) (string, bool, error) {
	key := domain.NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.code, true, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is done. Codes that are
// never read again would otherwise stay in memory.
func (m *Memory) StartSweeper(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep()
			}
		}
	}()
}

func (m *Memory) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, domain.NormalizeEmail(email))
	return nil
}
