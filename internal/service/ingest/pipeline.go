package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/metrics"
	"shipment-tracker/internal/ports/trackingtx"
)

// Pipeline accepts GPS samples and keeps the live position of shipments.
type Pipeline struct {
	store            sampleStore
	lanes            laneRunner
	routes           routeTracker
	pub              publisher
	metrics          *metrics.Tracking
	logger           logx.Logger
	clockSkew        time.Duration
	operationTimeout time.Duration
	now              func() time.Time
}

// Deps groups the collaborators of the Pipeline.
type Deps struct {
	Store     sampleStore
	Lanes     laneRunner
	Routes    routeTracker
	Publisher publisher
	Metrics   *metrics.Tracking
	Logger    logx.Logger
}

// NewPipeline creates a Pipeline. Samples recorded more than clockSkew in
// the future are rejected.
func NewPipeline(d Deps, clockSkew, timeout time.Duration) *Pipeline {
	if clockSkew <= 0 {
		clockSkew = 2 * time.Minute
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Pipeline{
		store:            d.Store,
		lanes:            d.Lanes,
		routes:           d.Routes,
		pub:              d.Publisher,
		metrics:          d.Metrics,
		logger:           d.Logger,
		clockSkew:        clockSkew,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.operationTimeout)
}

func validateSample(s *domain.LocationSample) error {
	if strings.TrimSpace(s.ShipmentID) == "" || strings.TrimSpace(s.DeviceID) == "" {
		return apperr.ErrInvalid
	}
	if !domain.ValidCoordinates(s.Lat, s.Lon) {
		return apperr.ErrInvalid
	}
	if s.RecordedAt.IsZero() {
		return apperr.ErrInvalid
	}
	if s.Accuracy != nil && *s.Accuracy < 0 {
		return apperr.ErrInvalid
	}
	if s.Speed != nil && *s.Speed < 0 {
		return apperr.ErrInvalid
	}
	if s.Heading != nil && (*s.Heading < 0 || *s.Heading >= 360) {
		return apperr.ErrInvalid
	}
	if s.BatteryLevel != nil && (*s.BatteryLevel < 0 || *s.BatteryLevel > 100) {
		return apperr.ErrInvalid
	}
	return nil
}

// Ingest stores a sample and moves the shipment position forward when the
// sample is the newest one seen. Older samples are stored for the trace only.
func (p *Pipeline) Ingest(ctx context.Context, sample domain.LocationSample) (domain.IngestResult, error) {
	res, err := p.ingest(ctx, sample)
	if err != nil {
		p.metrics.Sample(rejection(err))
		p.logger.Warn("location sample rejected",
			logx.String("shipment_id", sample.ShipmentID),
			logx.String("device_id", sample.DeviceID),
			logx.Time("recorded_at", sample.RecordedAt),
			logx.Err(err),
		)
		return domain.IngestResult{}, err
	}
	switch {
	case res.PositionUpdated:
		p.metrics.Sample("accepted")
	case res.Duplicate:
		p.metrics.Sample("duplicate")
	default:
		p.metrics.Sample("stale")
	}
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, sample domain.LocationSample) (domain.IngestResult, error) {
	if err := validateSample(&sample); err != nil {
		return domain.IngestResult{}, err
	}
	now := p.now()
	sample.ReceivedAt = now
	sample.Normalize()
	if sample.RecordedAt.After(now.Add(p.clockSkew)) {
		return domain.IngestResult{}, apperr.ErrInvalidTimestamp
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	sh, err := p.store.GetShipment(ctx, sample.ShipmentID)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if sh == nil {
		return domain.IngestResult{}, apperr.ErrNotFound
	}
	if !sh.Status.Trackable() {
		return domain.IngestResult{}, apperr.ErrNotTrackable
	}

	stored, err := p.store.InsertSample(ctx, &sample)
	if err != nil {
		return domain.IngestResult{}, err
	}
	// A duplicate still runs the position step: an earlier attempt may have
	// stored the sample and then failed inside the lane.
	res := domain.IngestResult{Stored: stored, Duplicate: !stored}
	err = p.lanes.Do(ctx, sample.ShipmentID, func() error {
		var ev *domain.Event
		err := p.store.WithTx(ctx, func(tx trackingtx.Repository) error {
			cur, err := tx.GetShipmentForUpdate(ctx, sample.ShipmentID)
			if err != nil {
				return err
			}
			if cur == nil {
				return apperr.ErrNotFound
			}
			res.Position = cur.CurrentPosition
			if !cur.Status.Trackable() {
				return nil
			}
			pos := sample.Position()
			if cur.CurrentPosition != nil && !pos.RecordedAt.After(cur.CurrentPosition.RecordedAt) {
				return nil
			}

			if err := tx.UpdatePosition(ctx, cur.ID, pos, sample.ReceivedAt); err != nil {
				return err
			}
			cur.CurrentPosition = &pos
			appended, err := p.routes.Track(ctx, tx, cur, pos)
			if err != nil {
				return err
			}
			ev = domain.NewLocationEvent(cur, pos, sample.ReceivedAt)
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
			res.PositionUpdated = true
			res.WaypointAppended = appended
			res.Position = &pos
			return nil
		})
		if err != nil {
			return err
		}
		if ev != nil {
			p.pub.Publish(*ev)
		}
		return nil
	})
	if err != nil {
		return domain.IngestResult{}, err
	}

	if res.PositionUpdated {
		p.logger.Debug("position updated",
			logx.String("shipment_id", sample.ShipmentID),
			logx.String("lat", sample.Lat.String()),
			logx.String("lon", sample.Lon.String()),
			logx.Bool("offline_replay", sample.IsOfflineReplay),
			logx.Bool("waypoint", res.WaypointAppended),
		)
	}
	return res, nil
}

func rejection(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return "invalid"
	case errors.Is(err, apperr.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrNotTrackable):
		return "not_trackable"
	default:
		return "error"
	}
}
