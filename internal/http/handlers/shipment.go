package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
)

// pollHeader tells fallback clients how often to refresh a snapshot.
const pollHeader = "X-Poll-Interval"

// ShipmentHandler handles HTTP requests for shipment resources.
type ShipmentHandler struct {
	usecase shipmentUsecase
	reader  ShipmentReader
	poll    time.Duration
	logger  logx.Logger
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(logger logx.Logger, uc shipmentUsecase, reader ShipmentReader, poll time.Duration) *ShipmentHandler {
	return &ShipmentHandler{usecase: uc, reader: reader, poll: poll, logger: orNop(logger)}
}

// Create handles POST /shipments.
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	sh, err := h.usecase.Create(r.Context(), req.toModel(), actor(r))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/shipments/"+sh.ID)
	writeJSON(h.logger, w, r, http.StatusCreated, shipmentToDTO(*sh))
}

// List handles GET /shipments?status=&vendor_id=&limit=&offset=.
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var f domain.ShipmentFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st := domain.ShipmentStatus(raw)
		if !st.Valid() {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid status")
			return
		}
		f.Status = &st
	}
	f.VendorID = strings.TrimSpace(r.URL.Query().Get("vendor_id"))

	var err error
	if f.Limit, _, err = queryInt(r, "limit"); err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	if f.Offset, _, err = queryInt(r, "offset"); err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.usecase.List(r.Context(), f)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, shipmentsToDTO(list))
}

// Get handles GET /shipments/{id}. It is also the fallback poll endpoint.
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	sh, err := h.reader.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	h.setPoll(w)
	writeJSON(h.logger, w, r, http.StatusOK, shipmentToDTO(*sh))
}

// GetByTrackingCode handles GET /shipments/track/{code}.
func (h *ShipmentHandler) GetByTrackingCode(w http.ResponseWriter, r *http.Request) {
	code, err := pathParam(r, "code")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid tracking code")
		return
	}

	sh, err := h.reader.GetByTrackingCode(r.Context(), strings.ToUpper(code))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	h.setPoll(w)
	writeJSON(h.logger, w, r, http.StatusOK, publicShipmentToDTO(*sh))
}

// Transition handles POST /shipments/{id}/transitions.
func (h *ShipmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req transitionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	sh, err := h.usecase.Transition(r.Context(), req.toModel(id, actor(r)))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, shipmentToDTO(*sh))
}

// Events handles GET /shipments/{id}/events?after_seq=&limit=.
func (h *ShipmentHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	after, _, err := queryInt(r, "after_seq")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.usecase.Events(r.Context(), id, int64(after), limit)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, eventsToDTO(list))
}

func (h *ShipmentHandler) setPoll(w http.ResponseWriter) {
	if h.poll > 0 {
		w.Header().Set(pollHeader, strconv.Itoa(int(h.poll/time.Second)))
	}
}
