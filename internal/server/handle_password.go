package server

import (
	"log/slog"
	"net/http"

	"github.com/lizzahq/attendd/internal/journal"
)

// PasswordChangeRequest is the body for POST /api/password.
type PasswordChangeRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// PasswordChangeResponse confirms the change.
type PasswordChangeResponse struct {
	Message string `json:"message"`
}

func handlePassword(logger *slog.Logger, passwords PasswordChanger, session SessionStore, email string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PasswordChangeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.OldPassword == "" || req.NewPassword == "" {
			writeError(w, http.StatusBadRequest, "old and new passwords are required")
			return
		}
		if len(req.NewPassword) < 8 {
			writeError(w, http.StatusBadRequest, "password must be at least 8 characters long")
			return
		}

		if err := passwords.ChangePassword(r.Context(), email, req.OldPassword, req.NewPassword); err != nil {
			logger.Warn("password change rejected", "error", err)
			writeError(w, http.StatusBadGateway, "password change rejected by backend")
			return
		}

		// Clearing the forced flag is best effort; the backend already
		// accepted the change.
		if err := session.Set(r.Context(), journal.KeyForcePasswordChange, "false"); err != nil {
			logger.Error("clearing forced password flag failed", "error", err)
		}

		writeJSON(w, http.StatusOK, PasswordChangeResponse{Message: "password updated"})
	}
}
