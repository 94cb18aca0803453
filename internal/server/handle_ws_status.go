package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// handleWSStatus streams state-transition events over a WebSocket. The
// current snapshot is sent first so a client can render immediately.
func handleWSStatus(logger *slog.Logger, t StatusTracker, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 12*time.Hour)
		defer cancel()

		snap := t.Snapshot()
		initial, _ := json.Marshal(map[string]any{
			"state":     string(snap.State.Kind),
			"dutyLabel": snap.State.DutyLabel(),
			"message":   snap.State.Message,
			"seq":       snap.Seq,
		})
		if err := conn.Write(ctx, websocket.MessageText, initial); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
