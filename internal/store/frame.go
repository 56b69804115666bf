package store

import (
	"database/sql"
	"time"
)

// Frame is the telemetry for one processed frame. The marker fields are
// nil when no detection decided the frame, and Distance is nil when it
// could not be estimated.
type Frame struct {
	RunID         string    `json:"run_id"`
	Seq           int       `json:"seq"`
	Detections    int       `json:"detections"`
	MarkerID      *int      `json:"marker_id,omitempty"`
	CenterX       *int      `json:"center_x,omitempty"`
	CenterY       *int      `json:"center_y,omitempty"`
	ApparentWidth *float64  `json:"apparent_width,omitempty"`
	Distance      *float64  `json:"distance_m,omitempty"`
	Zone          string    `json:"zone"`
	Angular       float64   `json:"angular"`
	Linear        float64   `json:"linear"`
	Error         string    `json:"error,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

// FrameRepository provides access to frame telemetry.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Insert records a frame. The run must exist.
func (r *FrameRepository) Insert(f *Frame) error {
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}
	if f.Zone == "" {
		f.Zone = "NONE"
	}

	_, err := r.db.Exec(
		`INSERT INTO frames (run_id, seq, detections, marker_id, center_x, center_y,
			apparent_width, distance_m, zone, angular, linear, error, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Seq, f.Detections, f.MarkerID, f.CenterX, f.CenterY,
		f.ApparentWidth, f.Distance, f.Zone, f.Angular, f.Linear, f.Error, f.CapturedAt,
	)
	return err
}

// ListByRun returns a run's frames in capture order. A limit <= 0 returns
// all of them; otherwise the first limit frames after offset are returned.
func (r *FrameRepository) ListByRun(runID string, offset, limit int) ([]*Frame, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT run_id, seq, detections, marker_id, center_x, center_y,
			apparent_width, distance_m, zone, angular, linear, error, captured_at
		 FROM frames WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*Frame
	for rows.Next() {
		f := &Frame{}
		var (
			markerID, centerX, centerY sql.NullInt64
			width, distance            sql.NullFloat64
		)

		err := rows.Scan(&f.RunID, &f.Seq, &f.Detections, &markerID, &centerX, &centerY,
			&width, &distance, &f.Zone, &f.Angular, &f.Linear, &f.Error, &f.CapturedAt)
		if err != nil {
			return nil, err
		}

		f.MarkerID = intPtr(markerID)
		f.CenterX = intPtr(centerX)
		f.CenterY = intPtr(centerY)
		f.ApparentWidth = floatPtr(width)
		f.Distance = floatPtr(distance)
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// ZoneCounts returns how many frames of a run fell in each zone.
func (r *FrameRepository) ZoneCounts(runID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT zone, COUNT(*) FROM frames WHERE run_id = ? GROUP BY zone`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var zone string
		var n int
		if err := rows.Scan(&zone, &n); err != nil {
			return nil, err
		}
		counts[zone] = n
	}

	return counts, rows.Err()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
