package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Runs table - one row per follower session
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			dictionary TEXT NOT NULL,
			selection TEXT NOT NULL DEFAULT 'last',
			topic TEXT NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			stop_reason TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Frames table - one row per processed frame
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			detections INTEGER NOT NULL DEFAULT 0,
			marker_id INTEGER,
			center_x INTEGER,
			center_y INTEGER,
			apparent_width REAL,
			distance_m REAL,
			zone TEXT NOT NULL CHECK(zone IN ('NONE', 'LEFT', 'CENTER', 'RIGHT')),
			angular REAL NOT NULL,
			linear REAL NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			captured_at DATETIME NOT NULL
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_frames_run_seq ON frames(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
