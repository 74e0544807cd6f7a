package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Training bursts - one row per Train call, including aborted ones
		`CREATE TABLE IF NOT EXISTS training_bursts (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL CHECK(label IN ('not_touching', 'touching')),
			requested INTEGER NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		// Run sessions - one row per classifier start/stop
		`CREATE TABLE IF NOT EXISTS run_sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			stopped_at DATETIME
		)`,

		// Alerts - fired alerts, tied to the run session that fired them
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES run_sessions(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_training_bursts_started_at ON training_bursts(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session_id ON alerts(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
