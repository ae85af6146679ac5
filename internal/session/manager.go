package session

import (
	"sync"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
)

// Manager tracks live sessions.
type Manager struct {
	cooldown time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	language announce.Language
}

// NewManager creates a Manager whose new sessions start in lang.
func NewManager(cooldown time.Duration, lang announce.Language) *Manager {
	return &Manager{
		cooldown: cooldown,
		sessions: make(map[string]*Session),
		language: lang,
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := New(m.cooldown, m.language)
	m.sessions[s.ID()] = s
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with id, or a new one when id is unknown.
// created reports whether a new session was made.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(), true
}

// SetDefaultLanguage changes the language of sessions created from now on.
func (m *Manager) SetDefaultLanguage(lang announce.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.language = lang
}

// DefaultLanguage returns the language for new sessions.
func (m *Manager) DefaultLanguage() announce.Language {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.language
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune removes sessions not seen for longer than idle and returns how many were removed.
func (m *Manager) Prune(now time.Time, idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.Snapshot().LastSeen) > idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
