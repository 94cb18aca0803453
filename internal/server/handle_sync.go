package server

import "net/http"

// SyncResponse reports whether the manual sync was queued. Queued is
// false when a sync request is already pending; the pending one covers
// this request too.
type SyncResponse struct {
	Queued bool `json:"queued"`
}

func handleSync(t StatusTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, SyncResponse{Queued: t.ManualSync()})
	}
}
