package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per accepted announcement
		`CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			language TEXT NOT NULL CHECK(language IN ('english', 'hindi')),
			status TEXT NOT NULL DEFAULT 'queued' CHECK(status IN ('queued', 'delivered', 'failed')),
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			delivered_at DATETIME
		)`,

		// Application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_announcements_session ON announcements(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_announcements_created ON announcements(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
