package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the delivery state of an announcement.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Announcement is a stored announcement.
type Announcement struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Label       string     `json:"label"`
	Text        string     `json:"text"`
	Language    string     `json:"language"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// AnnouncementRepository stores announcement history.
type AnnouncementRepository struct {
	db *sql.DB
}

// Announcements returns the announcement repository for this store.
func (s *Store) Announcements() *AnnouncementRepository {
	return &AnnouncementRepository{db: s.db}
}

// Create inserts a queued announcement.
func (r *AnnouncementRepository) Create(a *Announcement) error {
	if a.Status == "" {
		a.Status = StatusQueued
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO announcements (id, session_id, label, text, language, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Label, a.Text, a.Language, string(a.Status), a.Error, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}
	return nil
}

// MarkDelivered records the delivery outcome. A nil deliveryErr marks the
// announcement delivered, anything else marks it failed.
func (r *AnnouncementRepository) MarkDelivered(id string, at time.Time, deliveryErr error) error {
	status, msg := StatusDelivered, ""
	if deliveryErr != nil {
		status, msg = StatusFailed, deliveryErr.Error()
	}

	res, err := r.db.Exec(
		`UPDATE announcements SET status = ?, error = ?, delivered_at = ? WHERE id = ?`,
		string(status), msg, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves an announcement.
func (r *AnnouncementRepository) GetByID(id string) (*Announcement, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, label, text, language, status, error, created_at, delivered_at
		 FROM announcements WHERE id = ?`, id)
	a, err := scanAnnouncement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListBySession returns the newest announcements of a session first.
func (r *AnnouncementRepository) ListBySession(sessionID string, limit int) ([]*Announcement, error) {
	return r.list(
		`SELECT id, session_id, label, text, language, status, error, created_at, delivered_at
		 FROM announcements WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, normalizeLimit(limit))
}

// CountByStatus returns how many announcements are in each status.
func (r *AnnouncementRepository) CountByStatus() (map[Status]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM announcements GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

// DeleteBefore removes announcements created before t and returns how many were removed.
func (r *AnnouncementRepository) DeleteBefore(t time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM announcements WHERE created_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DefaultListLimit caps history queries.
const DefaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}

func (r *AnnouncementRepository) list(query string, args ...any) ([]*Announcement, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnnouncement(sc scanner) (*Announcement, error) {
	a := &Announcement{}
	var status string
	var delivered sql.NullTime
	if err := sc.Scan(&a.ID, &a.SessionID, &a.Label, &a.Text, &a.Language,
		&status, &a.Error, &a.CreatedAt, &delivered); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	if delivered.Valid {
		t := delivered.Time
		a.DeliveredAt = &t
	}
	return a, nil
}
