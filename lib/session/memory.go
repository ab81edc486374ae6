package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how often the memory store drops expired sessions.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in process memory. Everything is lost on restart.
// Expired sessions are removed by a background sweep until Close is called.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	return newMemoryStore(sweepInterval)
}

func newMemoryStore(interval time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]Session),
		stop:     make(chan struct{}),
	}
	go m.janitor(interval)
	return m
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// sweep deletes every expired session and reports how many were removed.
func (m *MemoryStore) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s.Affinity = s.Affinity.Clone()
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	cp := *s
	cp.Affinity = s.Affinity.Clone()
	m.mu.Lock()
	m.sessions[s.ID] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Close stops the background sweep. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}
