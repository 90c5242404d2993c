package handlers

import (
	"net/http"

	"shipment-tracker/internal/logx"
)

// RouteHandler handles planned and actual route requests.
type RouteHandler struct {
	usecase routeUsecase
	logger  logx.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(logger logx.Logger, uc routeUsecase) *RouteHandler {
	return &RouteHandler{usecase: uc, logger: orNop(logger)}
}

// Plan handles PUT /shipments/{id}/route.
func (h *RouteHandler) Plan(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req planRouteRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	rec, err := h.usecase.Plan(r.Context(), id, req.toModel(), req.EstimatedDurationMinutes)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, routeToDTO(*rec))
}

// Get handles GET /shipments/{id}/route.
func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	routes, err := h.usecase.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, routesToDTO(routes))
}
