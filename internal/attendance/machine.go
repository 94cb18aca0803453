package attendance

// Policy decides what the visible indicator does when the employee
// re-enters the geofence after being marked absent.
type Policy string

const (
	// PolicySticky keeps the indicator on Violation for the rest of the
	// session. Re-entry is still recorded as a transition attempt.
	PolicySticky Policy = "sticky"
	// PolicyReentry lets the indicator return to Inside while the
	// session-level violation latch stays set.
	PolicyReentry Policy = "reentry"
)

// Machine holds the attendance state for one session. It is not safe
// for concurrent use; the tracker confines all mutation to its loop
// goroutine.
type Machine struct {
	policy Policy

	state State
	// lastKnown is the most recent non-error state, kept so the duty
	// indicator can fall back to it while a poll is failing.
	lastKnown State
	violated  bool
}

func NewMachine(policy Policy) *Machine {
	initial := State{Kind: KindOutside, Message: "Awaiting first sample"}
	return &Machine{
		policy:    policy,
		state:     initial,
		lastKnown: initial,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// LastKnown returns the most recent non-error state.
func (m *Machine) LastKnown() State { return m.lastKnown }

// Violated reports whether a violation has occurred this session.
func (m *Machine) Violated() bool { return m.violated }

// Apply maps an evaluation onto the state machine and returns the new
// state. Mapping order: violation, warning, inside, outside. A
// violation is terminal until Reset; once violated, an ok/inside
// evaluation either holds the Violation state (sticky) or moves back to
// Inside with the latch still set (reentry).
func (m *Machine) Apply(eval Evaluation) State {
	next := interpret(eval)

	if m.violated && next.Kind != KindViolation {
		if m.policy == PolicySticky {
			// Keep the terminal state visible; only the latch owner
			// (manual sync) may clear it.
			m.state = m.lastKnown
			return m.state
		}
	}

	if next.Kind == KindViolation {
		m.violated = true
	}

	m.state = next
	m.lastKnown = next
	return m.state
}

// Fail records a sampling or sync failure. The error state overrides
// the display but lastKnown is preserved for fallback.
func (m *Machine) Fail(kind ErrKind, msg string) State {
	m.state = State{Kind: KindError, Message: msg, ErrKind: kind}
	return m.state
}

// Reset clears the terminal violation latch. Invoked by an explicit
// user action (manual sync), never by the poll loop itself.
func (m *Machine) Reset() {
	m.violated = false
}

func interpret(eval Evaluation) State {
	switch eval.Status {
	case "violation":
		msg := eval.Message
		if msg == "" {
			msg = "Marked Absent: geofence timeout"
		}
		return State{Kind: KindViolation, Message: msg}
	case "warning":
		secs := eval.WarningSeconds
		if secs < 0 {
			secs = 0
		}
		msg := eval.Message
		if msg == "" {
			msg = "Out of bounds! Return to zone"
		}
		return State{Kind: KindWarning, Message: msg, WarningSeconds: secs}
	}

	if eval.IsInside {
		msg := eval.Message
		if msg == "" {
			msg = "Inside geofence"
		}
		return State{Kind: KindInside, Message: msg}
	}

	msg := eval.Message
	if msg == "" {
		msg = "Outside geofence"
	}
	return State{Kind: KindOutside, Message: msg}
}
