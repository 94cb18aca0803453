package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GracePeriod is how long after shift start an employee has to register
// an inside sample before the backend flags an absence.
const GracePeriod = 15 * time.Minute

// CheckInWindow is the derived check-in countdown. It has no identity
// of its own; it is recomputed on every display tick.
type CheckInWindow struct {
	Active           bool
	SecondsRemaining int
}

// ParseShiftTime parses an "HH:MM" shift time.
func ParseShiftTime(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("shift time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("shift time %q: bad hour", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("shift time %q: bad minute", s)
	}
	return hour, minute, nil
}

// Window computes the check-in window for the given instant. The shift
// start is placed on now's calendar day; the window is active only
// while 0 < graceEnd-now < GracePeriod, so it is inactive at the exact
// shift-start instant and from graceEnd onward. Past graceEnd the
// window silently deactivates — absence itself is the evaluator's call.
func Window(now time.Time, shiftStart string) (CheckInWindow, error) {
	hour, minute, err := ParseShiftTime(shiftStart)
	if err != nil {
		return CheckInWindow{}, err
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	graceEnd := start.Add(GracePeriod)
	diff := graceEnd.Sub(now)

	if diff <= 0 || diff >= GracePeriod {
		return CheckInWindow{}, nil
	}
	return CheckInWindow{
		Active:           true,
		SecondsRemaining: int(diff / time.Second),
	}, nil
}
