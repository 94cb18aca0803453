package server

import (
	"net/http"
	"time"

	"github.com/lizzahq/attendd/internal/attendance"
)

// ProfileInfo is the employee's shift metadata.
type ProfileInfo struct {
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	ShiftStart   string `json:"shiftStart"`
	ShiftEnd     string `json:"shiftEnd"`
	BlockchainID string `json:"blockchainId,omitempty"`
}

// SampleInfo is the last submitted coordinate.
type SampleInfo struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  time.Time `json:"at"`
}

// CheckInInfo is the shift check-in countdown.
type CheckInInfo struct {
	Active           bool `json:"active"`
	SecondsRemaining int  `json:"secondsRemaining"`
}

// StatusResponse is the full tracker snapshot for GET /api/status.
type StatusResponse struct {
	Seq                 uint64      `json:"seq"`
	State               string      `json:"state"`
	DutyLabel           string      `json:"dutyLabel"`
	Message             string      `json:"message"`
	WarningSeconds      int         `json:"warningSeconds"`
	ErrorKind           string      `json:"errorKind,omitempty"`
	LastKnownState      string      `json:"lastKnownState"`
	ViolationFlagged    bool        `json:"violationFlagged"`
	CheckIn             CheckInInfo `json:"checkIn"`
	Profile             ProfileInfo `json:"profile"`
	LastSample          *SampleInfo `json:"lastSample,omitempty"`
	LastPollAt          *time.Time  `json:"lastPollAt,omitempty"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	ForcePasswordChange bool        `json:"forcePasswordChange"`
}

func handleStatus(t StatusTracker, session SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := t.Snapshot()

		forced, err := session.ForcePasswordChange(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := StatusResponse{
			Seq:              snap.Seq,
			State:            string(snap.State.Kind),
			DutyLabel:        snap.State.DutyLabel(),
			Message:          snap.State.Message,
			WarningSeconds:   snap.State.WarningSeconds,
			LastKnownState:   string(snap.LastKnown.Kind),
			ViolationFlagged: snap.Violated,
			CheckIn: CheckInInfo{
				Active:           snap.CheckIn.Active,
				SecondsRemaining: snap.CheckIn.SecondsRemaining,
			},
			Profile: ProfileInfo{
				Email:        snap.Profile.Email,
				FullName:     snap.Profile.FullName,
				ShiftStart:   snap.Profile.ShiftStart,
				ShiftEnd:     snap.Profile.ShiftEnd,
				BlockchainID: snap.Profile.BlockchainID,
			},
			ConsecutiveFailures: snap.ConsecutiveFailures,
			ForcePasswordChange: forced,
		}
		if snap.State.Kind == attendance.KindError {
			resp.ErrorKind = string(snap.State.ErrKind)
		}
		if snap.LastSample != nil {
			resp.LastSample = &SampleInfo{
				Lat: snap.LastSample.Lat,
				Lon: snap.LastSample.Lon,
				At:  snap.LastSample.At,
			}
		}
		if !snap.LastPollAt.IsZero() {
			at := snap.LastPollAt
			resp.LastPollAt = &at
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
