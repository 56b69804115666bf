package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is one follower session from camera open to shutdown.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Dictionary string     `json:"dictionary"`
	Selection  string     `json:"selection"`
	Topic      string     `json:"topic"`
	Frames     int        `json:"frames"`
	StopReason string     `json:"stop_reason"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Finished reports whether the run has been closed.
func (r *Run) Finished() bool {
	return r.EndedAt != nil
}

// RunRepository provides access to runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

const runColumns = `id, source, dictionary, selection, topic, frames, stop_reason, started_at, ended_at`

// Create inserts a new run. An empty ID is filled with a fresh UUID.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Selection == "" {
		run.Selection = "last"
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, dictionary, selection, topic, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Dictionary, run.Selection, run.Topic, run.StartedAt,
	)
	return err
}

// Finish records the end of a run.
func (r *RunRepository) Finish(id string, frames int, reason string) error {
	result, err := r.db.Exec(
		`UPDATE runs SET frames = ?, stop_reason = ?, ended_at = ? WHERE id = ?`,
		frames, reason, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List retrieves runs newest first. A limit <= 0 returns all runs.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and its frames.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var ended sql.NullTime

	err := s.Scan(&run.ID, &run.Source, &run.Dictionary, &run.Selection, &run.Topic,
		&run.Frames, &run.StopReason, &run.StartedAt, &ended)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		run.EndedAt = &t
	}
	return run, nil
}
