package handlers

import (
	"net/http"
	"strings"

	"shipment-tracker/internal/logx"
)

// TrackingCodeHandler handles vendor tracking code requests.
type TrackingCodeHandler struct {
	usecase trackingCodeUsecase
	logger  logx.Logger
}

// NewTrackingCodeHandler creates a new TrackingCodeHandler.
func NewTrackingCodeHandler(logger logx.Logger, uc trackingCodeUsecase) *TrackingCodeHandler {
	return &TrackingCodeHandler{usecase: uc, logger: orNop(logger)}
}

// Assign handles POST /shipments/{id}/tracking-codes.
func (h *TrackingCodeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req assignCodesRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	codes, err := h.usecase.Assign(r.Context(), strings.TrimSpace(req.OrderID), id, lineItemsToModel(req.LineItems))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, trackingCodesToDTO(codes))
}

// List handles GET /shipments/{id}/tracking-codes.
func (h *TrackingCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	codes, err := h.usecase.ListForShipment(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, trackingCodesToDTO(codes))
}

// Resolve handles GET /vendors/{vendor_id}/tracking/{code}.
func (h *TrackingCodeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	vendorID, err := pathParam(r, "vendor_id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid vendor id")
		return
	}
	code, err := pathParam(r, "code")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid tracking code")
		return
	}

	vt, err := h.usecase.ResolveForVendor(r.Context(), vendorID, strings.ToUpper(code))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, vendorTrackingToDTO(*vt))
}
