package server

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/lizzahq/attendd/internal/journal"
	"github.com/lizzahq/attendd/internal/tracker"
)

// StatusTracker is the slice of the tracker the handlers need.
type StatusTracker interface {
	Snapshot() tracker.Snapshot
	ManualSync() bool
}

// JournalReader reads back recorded transitions.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

// SessionStore is the durable identity store.
type SessionStore interface {
	Set(ctx context.Context, key, value string) error
	ForcePasswordChange(ctx context.Context) (bool, error)
}

// PasswordChanger forwards a password change to the backend.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
}

func addRoutes(r chi.Router, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("attendd control API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(deps.Logger, deps.DB, deps.Redis))
	r.Get("/ws/status", handleWSStatus(deps.Logger, deps.Tracker, deps.Broker))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handleStatus(deps.Tracker, deps.Session))
		r.Get("/journal", handleJournal(deps.Journal))
		r.Get("/events", handleEvents(deps.Broker))

		// Mutating routes honor the optional bearer token.
		r.Group(func(r chi.Router) {
			r.Use(bearerAuthMiddleware(deps.TokenHash))
			r.Post("/sync", handleSync(deps.Tracker))
			r.Post("/password", handlePassword(deps.Logger, deps.Passwords, deps.Session, deps.Email))
		})
	})
}
