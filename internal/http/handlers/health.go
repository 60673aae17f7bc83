package handlers

import (
	"context"
	"net/http"
)

// Pinger is the subset of a database pool used by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service liveness.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates the health endpoint. db may be nil, in which case
// only process liveness is reported.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check returns a simple health check response. GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status":   "ok",
		"database": "skipped",
	}
	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			response["status"] = "degraded"
			response["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response["database"] = "ok"
		}
	}
	writeJSON(w, status, response)
}
