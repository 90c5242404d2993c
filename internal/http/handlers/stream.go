package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
)

// Stream frame types.
const (
	frameSnapshot = "snapshot"
	frameEvent    = "event"
	frameResync   = "resync"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 512
)

// StreamHandler pushes shipment events to WebSocket clients.
type StreamHandler struct {
	hub      subscriber
	reader   snapshotReader
	upgrader websocket.Upgrader
	logger   logx.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(logger logx.Logger, hub subscriber, reader snapshotReader) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		reader: reader,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: orNop(logger),
	}
}

// Shipment handles GET /ws/shipments/{id}. The first frame is the current snapshot.
func (h *StreamHandler) Shipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	if _, err := h.reader.Get(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	h.serve(w, r, distributor.ShipmentScope(id))
}

// Vendor handles GET /ws/vendors/{vendor_id}.
func (h *StreamHandler) Vendor(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "vendor_id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid vendor id")
		return
	}
	h.serve(w, r, distributor.VendorScope(id))
}

// Admin handles GET /ws/admin.
func (h *StreamHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, distributor.AdminScope())
}

func (h *StreamHandler) serve(w http.ResponseWriter, r *http.Request, scope distributor.Scope) {
	// Subscribe before the snapshot is read so no event falls in between.
	sub, err := h.hub.Subscribe(scope)
	if err != nil {
		if errors.Is(err, distributor.ErrInvalidScope) {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid scope")
			return
		}
		writeError(h.logger, w, r, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logx.Err(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(
		logx.String("req_id", reqID(r.Context())),
		logx.String("scope", scope.Kind.String()),
		logx.String("scope_id", scope.ID),
	)
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)
	go h.pingLoop(ctx, conn)

	if scope.Kind == distributor.ScopeShipment {
		sh, err := h.reader.Get(ctx, scope.ID)
		if err != nil {
			logger.Warn("stream snapshot failed", logx.Err(err))
			return
		}
		dto := shipmentToDTO(*sh)
		if err := writeFrame(conn, streamFrame{Type: frameSnapshot, Shipment: &dto}); err != nil {
			return
		}
	}

	err = pump(ctx, sub, func(f streamFrame) error {
		if f.Type == frameResync {
			logger.Warn("stream subscriber fell behind", logx.Int("dropped", f.Dropped))
		}
		return writeFrame(conn, f)
	})
	if errors.Is(err, distributor.ErrClosed) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
	}
}

// eventSource is the consuming side of a hub subscription.
type eventSource interface {
	Next(ctx context.Context) (domain.Event, error)
	TakeDropped() int
}

// pump sends every event of src until an error. A resync frame precedes the
// first event after drops.
func pump(ctx context.Context, src eventSource, send func(streamFrame) error) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if n := src.TakeDropped(); n > 0 {
			if err := send(streamFrame{Type: frameResync, Dropped: n}); err != nil {
				return err
			}
		}
		dto := eventToDTO(ev)
		if err := send(streamFrame{Type: frameEvent, Event: &dto}); err != nil {
			return err
		}
	}
}

// readLoop discards client messages and cancels the stream once the peer goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f streamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
