package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lizzahq/attendd/internal/attendance"
	"github.com/lizzahq/attendd/internal/journal"
	"github.com/lizzahq/attendd/internal/tracker"
)

type stubTracker struct {
	snap   tracker.Snapshot
	queued bool
	synced int
}

func (s *stubTracker) Snapshot() tracker.Snapshot { return s.snap }
func (s *stubTracker) ManualSync() bool {
	s.synced++
	return s.queued
}

type stubJournal struct {
	events []journal.Event
	err    error
	limit  int
}

func (s *stubJournal) Recent(_ context.Context, limit int) ([]journal.Event, error) {
	s.limit = limit
	return s.events, s.err
}

type stubSession struct {
	values map[string]string
	forced bool
}

func (s *stubSession) Set(_ context.Context, key, value string) error {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

func (s *stubSession) ForcePasswordChange(_ context.Context) (bool, error) {
	return s.forced, nil
}

type stubPasswords struct {
	err error
	old string
	new string
}

func (s *stubPasswords) ChangePassword(_ context.Context, _, oldPassword, newPassword string) error {
	s.old, s.new = oldPassword, newPassword
	return s.err
}

func testSnapshot() tracker.Snapshot {
	at := time.Date(2026, time.March, 9, 9, 5, 0, 0, time.UTC)
	return tracker.Snapshot{
		Seq:       7,
		State:     attendance.State{Kind: attendance.KindInside, Message: "Present & Inside Zone"},
		LastKnown: attendance.State{Kind: attendance.KindInside},
		CheckIn:   attendance.CheckInWindow{Active: true, SecondsRemaining: 600},
		Profile: attendance.ShiftProfile{
			Email:      "maria.lopez@lizza.com",
			FullName:   "Maria Lopez",
			ShiftStart: "09:00",
			ShiftEnd:   "18:00",
		},
		LastSample: &attendance.Sample{Lat: 12.9716, Lon: 77.5946, At: at},
		LastPollAt: at,
	}
}

func TestHandleStatus(t *testing.T) {
	trk := &stubTracker{snap: testSnapshot()}
	rec := httptest.NewRecorder()
	handleStatus(trk, &stubSession{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.Seq != 7 || resp.State != "inside" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.DutyLabel != "ON DUTY" {
		t.Errorf("DutyLabel = %q", resp.DutyLabel)
	}
	if resp.ErrorKind != "" {
		t.Errorf("ErrorKind = %q, want empty outside error state", resp.ErrorKind)
	}
	if !resp.CheckIn.Active || resp.CheckIn.SecondsRemaining != 600 {
		t.Errorf("CheckIn = %+v", resp.CheckIn)
	}
	if resp.Profile.FullName != "Maria Lopez" {
		t.Errorf("Profile = %+v", resp.Profile)
	}
	if resp.LastSample == nil || resp.LastSample.Lat != 12.9716 {
		t.Errorf("LastSample = %+v", resp.LastSample)
	}
	if resp.LastPollAt == nil {
		t.Error("LastPollAt missing")
	}
}

func TestHandleStatusErrorState(t *testing.T) {
	snap := testSnapshot()
	snap.State = attendance.State{
		Kind:    attendance.KindError,
		ErrKind: attendance.ErrPermissionDenied,
		Message: "Location blocked. Enable GPS.",
	}
	trk := &stubTracker{snap: snap}

	rec := httptest.NewRecorder()
	handleStatus(trk, &stubSession{forced: true}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var resp StatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.ErrorKind != "permission_denied" {
		t.Errorf("ErrorKind = %q", resp.ErrorKind)
	}
	if resp.Message != "Location blocked. Enable GPS." {
		t.Errorf("Message = %q", resp.Message)
	}
	if !resp.ForcePasswordChange {
		t.Error("ForcePasswordChange not propagated")
	}
}

func TestHandleStatusBeforeFirstPoll(t *testing.T) {
	trk := &stubTracker{snap: tracker.Snapshot{
		State:     attendance.State{Kind: attendance.KindOutside, Message: "Awaiting first sample"},
		LastKnown: attendance.State{Kind: attendance.KindOutside},
	}}

	rec := httptest.NewRecorder()
	handleStatus(trk, &stubSession{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	body := rec.Body.String()
	if strings.Contains(body, "lastPollAt") {
		t.Error("lastPollAt present before first poll")
	}
	if strings.Contains(body, "lastSample") {
		t.Error("lastSample present before first poll")
	}
}

func TestHandleSync(t *testing.T) {
	trk := &stubTracker{queued: true}
	rec := httptest.NewRecorder()
	handleSync(trk).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp SyncResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Queued {
		t.Error("Queued = false")
	}
	if trk.synced != 1 {
		t.Errorf("ManualSync called %d times", trk.synced)
	}

	// A pending sync reports queued=false but still 202.
	trk.queued = false
	rec = httptest.NewRecorder()
	handleSync(trk).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Queued {
		t.Error("Queued = true while pending")
	}
}

func TestHandlePassword(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		body       string
		backendErr error
		wantStatus int
	}{
		{"ok", `{"oldPassword":"old-secret","newPassword":"brand-new-secret"}`, nil, http.StatusOK},
		{"invalid json", `{`, nil, http.StatusBadRequest},
		{"missing old", `{"newPassword":"brand-new-secret"}`, nil, http.StatusBadRequest},
		{"too short", `{"oldPassword":"old-secret","newPassword":"short"}`, nil, http.StatusBadRequest},
		{"backend rejects", `{"oldPassword":"wrong","newPassword":"brand-new-secret"}`, errors.New("incorrect current password"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passwords := &stubPasswords{err: tt.backendErr}
			session := &stubSession{}
			h := handlePassword(logger, passwords, session, "maria.lopez@lizza.com")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/password", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus == http.StatusOK {
				if session.values[journal.KeyForcePasswordChange] != "false" {
					t.Error("forced-change flag not cleared")
				}
				if passwords.new != "brand-new-secret" {
					t.Errorf("forwarded new password = %q", passwords.new)
				}
			}
		})
	}
}

func TestHandleJournal(t *testing.T) {
	j := &stubJournal{events: []journal.Event{
		{ID: 2, From: "inside", To: "warning", WarningSeconds: 300},
		{ID: 1, From: "outside", To: "inside"},
	}}

	rec := httptest.NewRecorder()
	handleJournal(j).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if j.limit != 2 {
		t.Errorf("limit = %d, want 2", j.limit)
	}
	var resp JournalResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Events) != 2 || resp.Events[0].To != "warning" {
		t.Errorf("events = %+v", resp.Events)
	}
}

func TestHandleJournalEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	handleJournal(&stubJournal{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal", nil))

	// An empty journal serializes as [], not null.
	if !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestBearerAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generating hash: %v", err)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		hash       string
		header     string
		wantStatus int
	}{
		{"no hash configured passes through", "", "", http.StatusNoContent},
		{"missing header", string(hash), "", http.StatusUnauthorized},
		{"malformed header", string(hash), "Token secret-token", http.StatusUnauthorized},
		{"wrong token", string(hash), "Bearer wrong", http.StatusUnauthorized},
		{"valid token", string(hash), "Bearer secret-token", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := bearerAuthMiddleware(tt.hash)(ok)
			req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)

	b.Publish(tracker.StateEvent{Seq: 1, From: attendance.KindOutside, To: attendance.KindInside})

	for _, ch := range []chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			var ev tracker.StateEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("unmarshalling event: %v", err)
			}
			if ev.To != attendance.KindInside {
				t.Errorf("event = %+v", ev)
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}

	// Unsubscribed channels receive nothing further.
	b.Unsubscribe(ch2)
	b.Publish(tracker.StateEvent{Seq: 2})
	select {
	case <-ch2:
		t.Error("unsubscribed channel received event")
	default:
	}
}

func TestBrokerDropsWhenSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the buffer and then some; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(tracker.StateEvent{Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHandleOpenAPI(t *testing.T) {
	rec := httptest.NewRecorder()
	handleOpenAPI().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var spec struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&spec); err != nil {
		t.Fatalf("decoding spec: %v", err)
	}
	if !strings.HasPrefix(spec.OpenAPI, "3.") {
		t.Errorf("openapi version = %q", spec.OpenAPI)
	}
	for _, path := range []string{"/healthz", "/api/status", "/api/sync", "/api/password", "/api/journal"} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("path %s missing from spec", path)
		}
	}
}
