// Package sampler provides location sources for the attendance tracker.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lizzahq/attendd/internal/attendance"
)

// Sampler produces a fresh coordinate reading on demand. Every call is
// a new read; implementations must not serve a cached fix beyond their
// configured freshness limit.
type Sampler interface {
	Sample(ctx context.Context) (attendance.Sample, error)
}

// Error is a classified sampling failure.
type Error struct {
	Kind attendance.ErrKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sampler: %s: %s", e.Kind, e.Msg)
}

// Classify extracts the error kind from a sampler failure, defaulting
// to position_unavailable for unclassified errors.
func Classify(err error) attendance.ErrKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return attendance.ErrTimeout
	}
	return attendance.ErrPositionUnavailable
}

// Fixed serves a static coordinate, for kiosks installed at a known
// position.
type Fixed struct {
	Lat float64
	Lon float64
	now func() time.Time
}

func NewFixed(lat, lon float64) *Fixed {
	return &Fixed{Lat: lat, Lon: lon, now: time.Now}
}

func (f *Fixed) Sample(_ context.Context) (attendance.Sample, error) {
	return attendance.Sample{Lat: f.Lat, Lon: f.Lon, At: f.now()}, nil
}
