package server

import (
	"log/slog"
	"sync"

	"github.com/sockframe-dev/sockframe/pkg/session"
)

// Manager tracks every live session in the process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	maxSessions int
	logger      *slog.Logger

	// Stats counters, guarded by mu.
	totalCreated uint64
	totalClosed  uint64
	peak         int
}

// NewManager creates a session manager. maxSessions of 0 means no limit.
func NewManager(maxSessions int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:    make(map[string]*session.Session),
		maxSessions: maxSessions,
		logger:      logger.With("component", "manager"),
	}
}

// Add registers a session. Fails when the session limit is reached.
func (m *Manager) Add(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return ErrMaxSessionsReached
	}

	m.sessions[s.ID()] = s
	m.totalCreated++
	if len(m.sessions) > m.peak {
		m.peak = len(m.sessions)
	}
	return nil
}

// Remove unregisters a session by ID. Unknown IDs are a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	m.totalClosed++
}

// Get returns a session by ID, or nil.
func (m *Manager) Get(id string) *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Disconnect tears down one session by ID and removes it from the
// manager. Returns ErrSessionNotFound for unknown IDs.
func (m *Manager) Disconnect(id string, code int) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.totalClosed++
	m.mu.Unlock()

	s.Disconnect(code)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ForEach calls fn for each live session until fn returns false.
func (m *Manager) ForEach(fn func(s *session.Session) bool) {
	m.mu.RLock()
	snapshot := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()

	for _, s := range snapshot {
		if !fn(s) {
			return
		}
	}
}

// Stats contains manager statistics.
type Stats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// Stats returns a snapshot of manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Active:       len(m.sessions),
		TotalCreated: m.totalCreated,
		TotalClosed:  m.totalClosed,
		Peak:         m.peak,
	}
}

// Shutdown disconnects every live session and clears the registry.
func (m *Manager) Shutdown(code int) {
	m.mu.Lock()
	snapshot := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.sessions = make(map[string]*session.Session)
	m.totalClosed += uint64(len(snapshot))
	m.mu.Unlock()

	for _, s := range snapshot {
		s.Disconnect(code)
	}

	m.logger.Info("manager shutdown", "sessions_closed", len(snapshot))
}
