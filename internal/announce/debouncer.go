package announce

import (
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sign2text/internal/gesture"
)

// DefaultCooldown is the minimum time between two announcements of the same label.
const DefaultCooldown = 2 * time.Second

// Announcement is a spoken notice for a recognized gesture.
type Announcement struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Label     string    `json:"label"`
	Text      string    `json:"text"`
	Language  Language  `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Debouncer suppresses repeated announcements of the same label within a cooldown window.
// It is not safe for concurrent use; callers own one Debouncer per producer.
type Debouncer struct {
	cooldown  time.Duration
	lastLabel string
	lastTime  time.Time
	hasLast   bool
	announced map[string]time.Time
}

// NewDebouncer creates a Debouncer. A non-positive cooldown selects DefaultCooldown.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Debouncer{
		cooldown:  cooldown,
		announced: make(map[string]time.Time),
	}
}

// Consider decides whether label, classified at now, should be announced in lang.
//
// Sentinel labels are always rejected. A label that was announced less than or
// exactly one cooldown ago is rejected. Anything else is accepted: a different
// label interrupts at once and the same label is repeated once the cooldown
// has passed. On acceptance the debounce state is updated and the returned
// Announcement carries the phrase for lang.
func (d *Debouncer) Consider(label string, now time.Time, lang Language) (Announcement, bool) {
	if gesture.IsSentinel(label) {
		return Announcement{}, false
	}

	if at, ok := d.announced[label]; ok && now.Sub(at) <= d.cooldown {
		return Announcement{}, false
	}

	d.lastLabel = label
	d.lastTime = now
	d.hasLast = true
	d.announced[label] = now
	d.prune(now)

	return Announcement{
		ID:        uuid.NewString(),
		Label:     label,
		Text:      Phrase(label, lang),
		Language:  lang,
		CreatedAt: now,
	}, true
}

// prune forgets labels whose cooldown has expired.
func (d *Debouncer) prune(now time.Time) {
	for label, at := range d.announced {
		if now.Sub(at) > d.cooldown {
			delete(d.announced, label)
		}
	}
}

// Last returns the most recently announced label and when it was announced.
// ok is false before the first announcement.
func (d *Debouncer) Last() (label string, at time.Time, ok bool) {
	return d.lastLabel, d.lastTime, d.hasLast
}

// Cooldown returns the configured cooldown.
func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}
