// Package attendance defines the core domain types and the attendance
// state machine. It has zero external dependencies — everything here is
// pure Go.
package attendance

import "time"

// Kind enumerates the attendance states shown to the employee.
type Kind string

const (
	KindInside    Kind = "inside"
	KindOutside   Kind = "outside"
	KindWarning   Kind = "warning"
	KindViolation Kind = "violation"
	KindError     Kind = "error"
)

// ErrKind classifies a failed poll.
type ErrKind string

const (
	ErrUnsupported         ErrKind = "unsupported"
	ErrPermissionDenied    ErrKind = "permission_denied"
	ErrTimeout             ErrKind = "timeout"
	ErrPositionUnavailable ErrKind = "position_unavailable"
	ErrSyncFailed          ErrKind = "sync_failed"
)

// State is the current attendance state. WarningSeconds is meaningful
// only when Kind is KindWarning; ErrKind only when Kind is KindError.
type State struct {
	Kind           Kind
	Message        string
	WarningSeconds int
	ErrKind        ErrKind
}

// DutyLabel renders the duty indicator for a state.
func (s State) DutyLabel() string {
	switch s.Kind {
	case KindInside:
		return "ON DUTY"
	case KindViolation:
		return "ABSENT (VIOLATION)"
	default:
		return "OFF DUTY / OUTSIDE"
	}
}

// Evaluation is the geofence evaluator's verdict for one sample.
// Status values other than "warning" and "violation" (the backend emits
// "normal", older builds emit "ok") are treated as ok.
type Evaluation struct {
	Status         string
	IsInside       bool
	WarningSeconds int
	Message        string
}

// Sample is one timestamped coordinate reading.
type Sample struct {
	Lat float64
	Lon float64
	At  time.Time
}

// ShiftProfile is the employee's shift metadata, fetched once per
// session from the profile endpoint.
type ShiftProfile struct {
	Email        string
	FullName     string
	ShiftStart   string // "HH:MM"
	ShiftEnd     string // "HH:MM"
	BlockchainID string
	// ForcePasswordChange is set by the backend after an admin reset;
	// the agent stores it durably and clears it on a successful change.
	ForcePasswordChange bool
}
