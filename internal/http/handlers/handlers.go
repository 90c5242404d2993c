package handlers

import (
	"context"
	"net/http"
	"time"

	"shipment-tracker/internal/logx"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers serves the service-level endpoints.
type Handlers struct {
	Logger logx.Logger
	checks []HealthCheck
}

// New creates a Handlers instance with the given logger.
func New(logger logx.Logger) *Handlers {
	return &Handlers{Logger: orNop(logger)}
}

// WithHealthCheck adds a dependency checked by the healthcheck. Nil checks are skipped.
func (h *Handlers) WithHealthCheck(check HealthCheck) *Handlers {
	if check != nil {
		h.checks = append(h.checks, check)
	}
	return h
}

// Ping handles GET /ping and returns 200 with {"message":"pong"}.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead handles HEAD /healthcheck: 204 when every dependency
// answers, 503 otherwise.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	for _, check := range h.checks {
		if err := check(ctx); err != nil {
			h.Logger.Warn("healthcheck failed", logx.String("req_id", reqID(r.Context())), logx.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotFound returns a JSON 404 error for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusNotFound, "route not found")
}
