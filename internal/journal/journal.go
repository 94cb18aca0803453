// Package journal persists attendance state transitions and the small
// durable session store (identity, forced-password-change flag).
package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Event is one recorded state transition.
type Event struct {
	ID             int64     `json:"id"`
	At             time.Time `json:"at"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Message        string    `json:"message"`
	WarningSeconds int       `json:"warningSeconds"`
	Lat            float64   `json:"lat,omitempty"`
	Lon            float64   `json:"lon,omitempty"`
	HasSample      bool      `json:"hasSample"`
}

type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record appends a transition.
func (j *Journal) Record(ctx context.Context, e Event) error {
	var lat, lon any
	if e.HasSample {
		lat, lon = e.Lat, e.Lon
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attendance_events (occurred_at, from_state, to_state, message, warning_seconds, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.At.UTC().Format(time.RFC3339Nano), e.From, e.To, e.Message, e.WarningSeconds, lat, lon)
	return err
}

// Recent returns the newest transitions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, occurred_at, from_state, to_state, message, warning_seconds, lat, lon
		FROM attendance_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var at string
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&e.ID, &at, &e.From, &e.To, &e.Message, &e.WarningSeconds, &lat, &lon); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		if lat.Valid && lon.Valid {
			e.Lat, e.Lon, e.HasSample = lat.Float64, lon.Float64, true
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountViolations reports how many violations were recorded since t.
func (j *Journal) CountViolations(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_events
		WHERE to_state = 'violation' AND occurred_at >= ?
	`, since.UTC().Format(time.RFC3339Nano)).Scan(&count)
	return count, err
}
