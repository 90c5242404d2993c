package shipment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/metrics"
	"shipment-tracker/internal/ports/trackingtx"
)

// Listing bounds.
const (
	DefaultListLimit   = 50
	MaxListLimit       = 200
	DefaultEventsLimit = 100
	MaxEventsLimit     = 500
)

// Deps groups the collaborators of the Service.
type Deps struct {
	Store     shipmentStore
	Lanes     laneRunner
	Routes    routeFinalizer
	Codes     codeAssigner
	Publisher publisher
	Metrics   *metrics.Tracking
	Logger    logx.Logger
}

// Service runs the shipment state machine and serves shipment queries.
type Service struct {
	store            shipmentStore
	lanes            laneRunner
	routes           routeFinalizer
	codes            codeAssigner
	pub              publisher
	metrics          *metrics.Tracking
	logger           logx.Logger
	fixFreshness     time.Duration
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a shipment Service. fixFreshness is how old the last
// position may be for a delivery without override.
func NewService(d Deps, fixFreshness, timeout time.Duration) *Service {
	if fixFreshness <= 0 {
		fixFreshness = 15 * time.Minute
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Service{
		store:            d.Store,
		lanes:            d.Lanes,
		routes:           d.Routes,
		codes:            d.Codes,
		pub:              d.Publisher,
		metrics:          d.Metrics,
		logger:           d.Logger,
		fixFreshness:     fixFreshness,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validateCreate(in domain.NewShipment) error {
	if strings.TrimSpace(in.OrderID) == "" || strings.TrimSpace(in.WarehouseID) == "" {
		return apperr.ErrInvalid
	}
	for _, it := range in.LineItems {
		if strings.TrimSpace(it.ProductID) == "" || strings.TrimSpace(it.VendorID) == "" || it.Quantity <= 0 {
			return apperr.ErrInvalid
		}
	}
	return nil
}

// Create opens a shipment in preparing, gives it an order-level tracking
// code and assigns vendor codes for its line items.
func (s *Service) Create(ctx context.Context, in domain.NewShipment, actor string) (*domain.Shipment, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	sh := &domain.Shipment{
		ID:                uuid.NewString(),
		OrderID:           strings.TrimSpace(in.OrderID),
		WarehouseID:       strings.TrimSpace(in.WarehouseID),
		CarrierID:         in.CarrierID,
		DeliveryPersonID:  in.DeliveryPersonID,
		Status:            domain.StatusPreparing,
		EstimatedDelivery: in.EstimatedDelivery,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var (
		created *domain.Shipment
		err     error
	)
	for attempt := 1; ; attempt++ {
		if sh.TrackingCode, err = s.codes.NewShipmentCode(); err != nil {
			return nil, err
		}
		created, err = s.create(ctx, sh, in.LineItems, actor)
		if !errors.Is(err, errCodeTaken) || attempt >= s.codes.MaxAttempts() {
			break
		}
	}
	if err != nil {
		s.logger.Error("create shipment failed",
			logx.String("shipment_id", sh.ID),
			logx.String("order_id", sh.OrderID),
			logx.Err(err),
		)
		return nil, fmt.Errorf("create shipment: %w", err)
	}

	s.logger.Info("shipment created",
		logx.String("event", "shipment_created"),
		logx.String("shipment_id", created.ID),
		logx.String("order_id", created.OrderID),
		logx.String("tracking_code", created.TrackingCode),
	)
	return created, nil
}

// errCodeTaken marks a collision on the order-level tracking code.
var errCodeTaken = errors.New("shipment tracking code taken")

// create stores the shipment, its vendor codes and the created event in one
// transaction and publishes the event. Nothing is stored if any step fails.
func (s *Service) create(ctx context.Context, sh *domain.Shipment, items []domain.LineItem, actor string) (*domain.Shipment, error) {
	var created *domain.Shipment
	err := s.lanes.Do(ctx, sh.ID, func() error {
		var ev *domain.Event
		err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
			if err := tx.CreateShipment(ctx, sh); err != nil {
				if errors.Is(err, apperr.ErrConflict) {
					return fmt.Errorf("%w: %w", errCodeTaken, err)
				}
				return err
			}
			if len(items) > 0 {
				if _, err := s.codes.AssignTx(ctx, tx, sh.ID, items); err != nil {
					return fmt.Errorf("assign tracking codes: %w", err)
				}
			}
			cur, err := tx.GetShipmentForUpdate(ctx, sh.ID)
			if err != nil {
				return err
			}
			if cur == nil {
				return apperr.ErrNotFound
			}
			ev = domain.NewStatusEvent(cur, "", actor, "", sh.CreatedAt)
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
			cur.EventSeq = ev.Seq
			created = cur
			return nil
		})
		if err != nil {
			return err
		}
		s.pub.Publish(*ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Transition moves a shipment to req.Target. Re-applying the current status
// is a no-op. The change and its event are committed together and the event
// is published before Transition returns.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Shipment, error) {
	if strings.TrimSpace(req.ShipmentID) == "" || !req.Target.Valid() {
		return nil, apperr.ErrInvalid
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		result *domain.Shipment
		from   domain.ShipmentStatus
		noop   bool
	)
	err := s.lanes.Do(ctx, req.ShipmentID, func() error {
		var ev *domain.Event
		err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
			sh, err := tx.GetShipmentForUpdate(ctx, req.ShipmentID)
			if err != nil {
				return err
			}
			if sh == nil {
				return apperr.ErrNotFound
			}
			from = sh.Status
			if sh.Status == req.Target {
				noop = true
				result = sh
				return nil
			}
			if sh.Status.Terminal() {
				return apperr.ErrTerminalState
			}
			if !sh.Status.CanTransitionTo(req.Target) {
				return apperr.ErrInvalidTransition
			}

			now := s.now()
			if req.Target == domain.StatusDelivered {
				if !req.HasOverride() && !sh.FreshFix(now, s.fixFreshness) {
					return apperr.ErrFixRequired
				}
				at := now
				sh.ActualDelivery = &at
				if req.SignatureReference != "" {
					sh.SignatureReference = req.SignatureReference
				}
			}
			if req.Notes != "" {
				sh.DeliveryNotes = req.Notes
			}
			sh.Status = req.Target
			sh.UpdatedAt = now

			if err := tx.UpdateStatus(ctx, sh); err != nil {
				return err
			}
			if req.Target.Terminal() {
				end := now
				if sh.ActualDelivery != nil {
					end = *sh.ActualDelivery
				}
				if err := s.routes.Finalize(ctx, tx, sh.ID, end); err != nil {
					return err
				}
			}

			ev = domain.NewStatusEvent(sh, from, req.Actor, req.Notes, now)
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
			sh.EventSeq = ev.Seq
			result = sh
			return nil
		})
		if err != nil {
			return err
		}
		if ev != nil {
			s.pub.Publish(*ev)
		}
		return nil
	})
	if err != nil {
		s.metrics.Transition(string(req.Target), resultOf(err))
		if isRejection(err) {
			s.logger.Warn("transition rejected",
				logx.String("shipment_id", req.ShipmentID),
				logx.String("from", string(from)),
				logx.String("to", string(req.Target)),
				logx.String("actor", req.Actor),
				logx.Err(err),
			)
		}
		return nil, err
	}

	if noop {
		s.metrics.Transition(string(req.Target), "noop")
		return result, nil
	}
	s.metrics.Transition(string(req.Target), "ok")
	s.logger.Info("shipment status changed",
		logx.String("event", "status_changed"),
		logx.String("shipment_id", result.ID),
		logx.String("from", string(from)),
		logx.String("to", string(result.Status)),
		logx.String("actor", req.Actor),
		logx.Bool("override", req.HasOverride()),
		logx.Int64("seq", result.EventSeq),
	)
	return result, nil
}

func isRejection(err error) bool {
	return errors.Is(err, apperr.ErrInvalidTransition) ||
		errors.Is(err, apperr.ErrTerminalState) ||
		errors.Is(err, apperr.ErrFixRequired) ||
		errors.Is(err, apperr.ErrNotFound)
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperr.ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, apperr.ErrFixRequired):
		return "fix_required"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Get returns a shipment by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Shipment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	sh, err := s.store.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return sh, nil
}

// GetByTrackingCode returns a shipment by its order-level tracking code.
func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*domain.Shipment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ErrNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	sh, err := s.store.GetShipmentByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return sh, nil
}

// List returns shipments for dashboards.
func (s *Service) List(ctx context.Context, f domain.ShipmentFilter) ([]domain.Shipment, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.ErrInvalid
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.ErrInvalid
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListShipments(ctx, f)
}

// Events returns stored events of a shipment after afterSeq, for clients
// reconciling missed pushes.
func (s *Service) Events(ctx context.Context, shipmentID string, afterSeq int64, limit int) ([]domain.Event, error) {
	if afterSeq < 0 || limit < 0 {
		return nil, apperr.ErrInvalid
	}
	if limit == 0 {
		limit = DefaultEventsLimit
	}
	if limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sh, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.ErrNotFound
	}
	return s.store.ListEvents(ctx, shipmentID, afterSeq, limit)
}
