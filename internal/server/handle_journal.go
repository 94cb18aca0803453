package server

import (
	"net/http"
	"strconv"

	"github.com/lizzahq/attendd/internal/journal"
)

// JournalResponse lists recent state transitions, newest first.
type JournalResponse struct {
	Events []journal.Event `json:"events"`
}

func handleJournal(j JournalReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		events, err := j.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if events == nil {
			events = []journal.Event{}
		}
		writeJSON(w, http.StatusOK, JournalResponse{Events: events})
	}
}
