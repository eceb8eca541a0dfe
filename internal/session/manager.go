package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Manager owns every live session. Sessions expire after ttl without
// activity; when more than maxSessions are live the least recently used is
// dropped.
type Manager struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, *Session]
	logger *slog.Logger
}

// NewManager creates a registry.
func NewManager(maxSessions int, ttl time.Duration, logger *slog.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger.With("component", "sessions")}
	m.cache = expirable.NewLRU[string, *Session](maxSessions, func(id string, s *Session) {
		m.logger.Debug("session discarded",
			"session_id", id,
			"age", time.Since(s.Created()).Round(time.Second))
	}, ttl)
	return m
}

// Resolve returns the session for id, creating a fresh one when id is
// unknown, expired or malformed. created reports the latter case.
func (m *Manager) Resolve(id string) (sess *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err == nil {
		if s, ok := m.cache.Get(id); ok {
			// Re-adding resets the idle expiry.
			m.cache.Add(id, s)
			return s, false
		}
	}

	s := New(uuid.NewString())
	m.cache.Add(s.ID(), s)
	m.logger.Info("session started", "session_id", s.ID())
	return s, true
}

// Get returns a live session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.cache.Get(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Purge discards every session.
func (m *Manager) Purge() {
	m.cache.Purge()
}
