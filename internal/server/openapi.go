package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "attendd control API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Local control API for the geofence attendance agent.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the agent's dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/status
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/status")
	getStatus.SetSummary("Attendance status")
	getStatus.SetDescription("Returns the full attendance snapshot: state, duty indicator, warning countdown, check-in window, shift profile.")
	getStatus.AddRespStructure(StatusResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStatus)

	// POST /api/sync
	postSync, _ := r.NewOperationContext(http.MethodPost, "/api/sync")
	postSync.SetSummary("Manual sync")
	postSync.SetDescription("Queues an immediate location poll, bypassing the fixed interval. Also resets the terminal violation latch.")
	postSync.AddRespStructure(SyncResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	postSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postSync)

	// POST /api/password
	postPassword, _ := r.NewOperationContext(http.MethodPost, "/api/password")
	postPassword.SetSummary("Change password")
	postPassword.SetDescription("Forwards a password change to the backend and clears the forced-change flag on success.")
	postPassword.AddReqStructure(PasswordChangeRequest{})
	postPassword.AddRespStructure(PasswordChangeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postPassword.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postPassword.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postPassword)

	// GET /api/journal
	getJournal, _ := r.NewOperationContext(http.MethodGet, "/api/journal")
	getJournal.SetSummary("Transition journal")
	getJournal.SetDescription("Returns recent attendance state transitions, newest first.")
	getJournal.AddRespStructure(JournalResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getJournal)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of attendance state transitions.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/status
	getWSStatus, _ := r.NewOperationContext(http.MethodGet, "/ws/status")
	getWSStatus.SetSummary("WebSocket status stream")
	getWSStatus.SetDescription("Upgrades to a WebSocket that pushes the current snapshot followed by state transitions.")
	getWSStatus.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWSStatus)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
