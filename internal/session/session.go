// Package session holds per-viewer recognition state: the debounce state,
// the language setting and the last classified gesture.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/gesture"
)

// Session is one producer's recognition state. It is safe for concurrent use.
type Session struct {
	id      string
	created time.Time

	mu          sync.Mutex
	debouncer   *announce.Debouncer
	language    announce.Language
	lastGesture string
	lastSeen    time.Time
}

// New creates a session with a fresh id.
func New(cooldown time.Duration, lang announce.Language) *Session {
	now := time.Now()
	return &Session{
		id:          uuid.NewString(),
		created:     now,
		debouncer:   announce.NewDebouncer(cooldown),
		language:    lang,
		lastGesture: "None",
		lastSeen:    now,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Observe records the prediction for a frame and returns the announcement
// to enqueue, if any.
func (s *Session) Observe(p gesture.Prediction) (announce.Announcement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastGesture = p.Label
	s.lastSeen = p.At

	a, ok := s.debouncer.Consider(p.Label, p.At, s.language)
	if ok {
		a.SessionID = s.id
	}
	return a, ok
}

// Language returns the current language.
func (s *Session) Language() announce.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage switches the language for future announcements. It does not
// affect debounce timing.
func (s *Session) SetLanguage(lang announce.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// Touch marks the session as active.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// Snapshot is a point in time view of a session.
type Snapshot struct {
	ID            string
	Language      announce.Language
	LastGesture   string
	LastAnnounced string
	LastSeen      time.Time
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, _, _ := s.debouncer.Last()
	return Snapshot{
		ID:            s.id,
		Language:      s.language,
		LastGesture:   s.lastGesture,
		LastAnnounced: last,
		LastSeen:      s.lastSeen,
	}
}
