// Package app wires the recognition pipeline together: landmark detection,
// classification, per-session debouncing, persistence and the speech queue.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/sign2text/internal/announce"
	"github.com/ayusman/sign2text/internal/classifier"
	"github.com/ayusman/sign2text/internal/detector"
	"github.com/ayusman/sign2text/internal/session"
	"github.com/ayusman/sign2text/internal/speech"
	"github.com/ayusman/sign2text/internal/store"
)

// Config holds the collaborators of an App.
type Config struct {
	// Detector finds hands in frames. Defaults to a MockDetector that never sees a hand.
	Detector detector.Detector
	// Recognizer classifies landmark vectors. Defaults to an empty Recognizer.
	Recognizer *classifier.Recognizer
	// Sink renders announcements. Defaults to a LogSink on stdout.
	Sink speech.Sink
	// Store records announcement history and the last language. Optional.
	Store *store.Store

	Cooldown     time.Duration
	Language     announce.Language
	PollInterval time.Duration
	Policy       speech.ShutdownPolicy
	Logger       *slog.Logger
}

// EventType is the kind of an announcement event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventDelivered EventType = "delivered"
	EventFailed    EventType = "failed"
)

// Event reports a state change of an announcement.
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Label     string    `json:"label"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

func newEvent(t EventType, a announce.Announcement, at time.Time, err error) Event {
	e := Event{
		Type:      t,
		ID:        a.ID,
		SessionID: a.SessionID,
		Label:     a.Label,
		Text:      a.Text,
		Language:  a.Language.String(),
		At:        at,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// App is the recognition engine shared by the console loop and the web server.
type App struct {
	provider   *detector.Provider
	recognizer *classifier.Recognizer
	store      *store.Store
	sessions   *session.Manager
	queue      *speech.Queue
	log        *slog.Logger
	now        func() time.Time

	mu          sync.RWMutex
	subscribers map[int]func(Event)
	nextSub     int
}

// New creates an App. Call Start before processing frames.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Detector == nil {
		cfg.Detector = detector.NewMockDetector()
	}
	if cfg.Recognizer == nil {
		cfg.Recognizer = classifier.NewRecognizer(0)
	}
	if cfg.Sink == nil {
		cfg.Sink = speech.NewLogSink(nil, 0)
	}

	a := &App{
		provider:    detector.NewProvider(cfg.Detector, logger),
		recognizer:  cfg.Recognizer,
		store:       cfg.Store,
		log:         logger,
		now:         time.Now,
		subscribers: make(map[int]func(Event)),
	}

	lang := cfg.Language
	if cfg.Store != nil {
		if v, err := cfg.Store.Settings().Get(store.SettingLanguage); err == nil {
			if saved, err := announce.ParseLanguage(v); err == nil {
				lang = saved
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("failed to load saved language", "error", err)
		}
	}
	a.sessions = session.NewManager(cfg.Cooldown, lang)

	a.queue = speech.NewQueue(cfg.Sink, speech.Options{
		PollInterval: cfg.PollInterval,
		Policy:       cfg.Policy,
		OnDelivered:  a.delivered,
		Logger:       logger,
	})
	return a
}

// Start launches the speech worker.
func (a *App) Start(ctx context.Context) {
	a.queue.Start(ctx)
	a.log.Info("speech worker started")
}

// Stop closes the speech queue according to its shutdown policy, then
// releases the detector and the model. If ctx ends before the backlog is
// spoken, the in-flight delivery is cancelled. Stop returns only after the
// speech worker has exited, so the sink's resources are free to release.
func (a *App) Stop(ctx context.Context) error {
	err := a.queue.Close(ctx)
	if err != nil {
		a.log.Warn("speech queue did not drain, waiting for the worker", "error", err)
	}
	a.queue.Wait()
	if cerr := a.provider.Close(); cerr != nil {
		a.log.Warn("error closing detector", "error", cerr)
	}
	if cerr := a.recognizer.Close(); cerr != nil {
		a.log.Warn("error closing model", "error", cerr)
	}
	delivered, failed := a.queue.Stats()
	a.log.Info("speech worker stopped", "delivered", delivered, "failed", failed)
	return err
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Queue returns the speech queue.
func (a *App) Queue() *speech.Queue {
	return a.queue
}

// Recognizer returns the active recognizer.
func (a *App) Recognizer() *classifier.Recognizer {
	return a.recognizer
}

// Store returns the history store, or nil.
func (a *App) Store() *store.Store {
	return a.store
}

// SetLanguage switches sess to lang and remembers lang as the default for
// new sessions.
func (a *App) SetLanguage(sess *session.Session, lang announce.Language) {
	sess.SetLanguage(lang)
	a.SetDefaultLanguage(lang)
	a.log.Info("language changed", "session", sess.ID(), "language", lang.String())
}

// ToggleLanguage switches sess between English and Hindi and returns the new language.
func (a *App) ToggleLanguage(sess *session.Session) announce.Language {
	lang := announce.Hindi
	if sess.Language() == announce.Hindi {
		lang = announce.English
	}
	a.SetLanguage(sess, lang)
	return lang
}

// SetDefaultLanguage sets and saves the language for new sessions.
func (a *App) SetDefaultLanguage(lang announce.Language) {
	a.sessions.SetDefaultLanguage(lang)
	if a.store != nil {
		if err := a.store.Settings().Set(store.SettingLanguage, lang.String()); err != nil {
			a.log.Warn("failed to save language", "error", err)
		}
	}
}

// Subscribe registers fn for announcement events and returns a function that
// removes it. fn is called synchronously and must not block.
func (a *App) Subscribe(fn func(Event)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

func (a *App) publish(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, fn := range a.subscribers {
		fn(e)
	}
}

// announce records and enqueues an accepted announcement.
func (a *App) announce(ann announce.Announcement) {
	if a.store != nil {
		rec := &store.Announcement{
			ID:        ann.ID,
			SessionID: ann.SessionID,
			Label:     ann.Label,
			Text:      ann.Text,
			Language:  ann.Language.String(),
			CreatedAt: ann.CreatedAt,
		}
		if err := a.store.Announcements().Create(rec); err != nil {
			a.log.Warn("failed to record announcement", "id", ann.ID, "error", err)
		}
	}

	// Published first so subscribers never see a delivery before its queueing.
	a.publish(newEvent(EventQueued, ann, ann.CreatedAt, nil))
	if err := a.queue.Enqueue(ann); err != nil {
		a.log.Warn("announcement dropped", "id", ann.ID, "label", ann.Label, "error", err)
		a.delivered(ann, err)
		return
	}
	a.log.Info("gesture announced", "session", ann.SessionID, "label", ann.Label, "text", ann.Text)
}

// delivered is the speech queue hook.
func (a *App) delivered(ann announce.Announcement, err error) {
	at := a.now()
	if a.store != nil {
		if serr := a.store.Announcements().MarkDelivered(ann.ID, at, err); serr != nil && !errors.Is(serr, store.ErrNotFound) {
			a.log.Warn("failed to record delivery", "id", ann.ID, "error", serr)
		}
	}
	t := EventDelivered
	if err != nil {
		t = EventFailed
	}
	a.publish(newEvent(t, ann, at, err))
}
