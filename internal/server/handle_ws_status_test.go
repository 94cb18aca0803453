package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lizzahq/attendd/internal/attendance"
	"github.com/lizzahq/attendd/internal/tracker"
)

func TestHandleWSStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := NewBroker()
	trk := &stubTracker{snap: testSnapshot()}

	srv := httptest.NewServer(handleWSStatus(logger, trk, broker))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.CloseNow()

	// The current snapshot arrives first.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading initial snapshot: %v", err)
	}
	var initial map[string]any
	if err := json.Unmarshal(data, &initial); err != nil {
		t.Fatalf("unmarshalling initial snapshot: %v", err)
	}
	if initial["state"] != "inside" || initial["dutyLabel"] != "ON DUTY" {
		t.Errorf("initial snapshot = %v", initial)
	}

	// Transitions published after connect are streamed. The server
	// subscribes after sending the snapshot, so publish until delivered.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				broker.Publish(tracker.StateEvent{
					Seq:       2,
					From:      attendance.KindInside,
					To:        attendance.KindViolation,
					DutyLabel: "ABSENT (VIOLATION)",
				})
			}
		}
	}()

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	var ev tracker.StateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshalling event: %v", err)
	}
	if ev.To != attendance.KindViolation {
		t.Errorf("event = %+v", ev)
	}
}
