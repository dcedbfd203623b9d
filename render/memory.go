package render

import (
	"context"
	"sync"
	"time"
)

type hostEntry struct {
	engineName string
	expiresAt  time.Time
}

// HostMemory remembers which engine last rendered each host successfully,
// so later pages from the same site skip the race.
type HostMemory struct {
	mu    sync.Mutex
	store map[string]hostEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewHostMemory creates a HostMemory whose entries live for ttl.
func NewHostMemory(ttl time.Duration) *HostMemory {
	return &HostMemory{
		store: make(map[string]hostEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the remembered engine for host, or "".
func (m *HostMemory) Get(host string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.store, host)
		return ""
	}
	return e.engineName
}

func (m *HostMemory) Set(host, engineName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[host] = hostEntry{engineName: engineName, expiresAt: m.now().Add(m.ttl)}
}

func (m *HostMemory) Delete(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, host)
}

// Run prunes expired entries every interval until ctx is done.
func (m *HostMemory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for host, e := range m.store {
				if now.After(e.expiresAt) {
					delete(m.store, host)
				}
			}
			m.mu.Unlock()
		}
	}
}
