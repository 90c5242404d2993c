package handlers

import (
	"net/http"

	"shipment-tracker/internal/logx"
)

// LocationHandler accepts GPS samples from carrier devices.
type LocationHandler struct {
	usecase ingestUsecase
	logger  logx.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(logger logx.Logger, uc ingestUsecase) *LocationHandler {
	return &LocationHandler{usecase: uc, logger: orNop(logger)}
}

// Ingest handles POST /shipments/{id}/locations.
// Duplicates are reported with 200, newly stored samples with 202.
func (h *LocationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req locationRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	res, err := h.usecase.Ingest(r.Context(), req.toModel(id))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	status := http.StatusAccepted
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(h.logger, w, r, status, ingestResultToResponse(res))
}
