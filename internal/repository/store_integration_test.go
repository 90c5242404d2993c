//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shipment-tracker/internal/apperr"
	"shipment-tracker/internal/domain"
	"shipment-tracker/internal/ports/trackingtx"
	"shipment-tracker/internal/repository"
)

type StoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *repository.Store
	now   time.Time
}

func (s *StoreSuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.store = repository.NewStore(tcPool)
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE shipments CASCADE`)
	s.Require().NoError(err)
}

func (s *StoreSuite) createShipment(code string, status domain.ShipmentStatus) *domain.Shipment {
	sh := &domain.Shipment{
		ID:           uuid.NewString(),
		TrackingCode: code,
		OrderID:      "order-1",
		WarehouseID:  "wh-1",
		Status:       status,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.store.CreateShipment(context.Background(), sh))
	return sh
}

func (s *StoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusPreparing)

	got, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(sh.TrackingCode, got.TrackingCode)
	s.Equal(domain.StatusPreparing, got.Status)
	s.Nil(got.CurrentPosition)
	s.Empty(got.VendorIDs)

	byCode, err := s.store.GetShipmentByTrackingCode(ctx, "SHP-AAAAAAAAAA")
	s.Require().NoError(err)
	s.Require().NotNil(byCode)
	s.Equal(sh.ID, byCode.ID)
}

func (s *StoreSuite) TestCreate_DuplicateCode() {
	s.createShipment("SHP-AAAAAAAAAA", domain.StatusPreparing)

	err := s.store.CreateShipment(context.Background(), &domain.Shipment{
		ID: uuid.NewString(), TrackingCode: "SHP-AAAAAAAAAA", OrderID: "o", WarehouseID: "w",
		Status: domain.StatusPreparing, CreatedAt: s.now, UpdatedAt: s.now,
	})
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *StoreSuite) TestTxCreate_CollisionKeepsTxUsable() {
	ctx := context.Background()
	s.createShipment("SHP-AAAAAAAAAA", domain.StatusPreparing)
	sh := &domain.Shipment{
		ID: uuid.NewString(), TrackingCode: "SHP-AAAAAAAAAA", OrderID: "o", WarehouseID: "w",
		Status: domain.StatusPreparing, CreatedAt: s.now, UpdatedAt: s.now,
	}

	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		s.Require().ErrorIs(tx.CreateShipment(ctx, sh), apperr.ErrConflict)
		sh.TrackingCode = "SHP-BBBBBBBBBB"
		if err := tx.CreateShipment(ctx, sh); err != nil {
			return err
		}
		_, err := tx.InsertTrackingCode(ctx, &domain.TrackingCode{
			ShipmentID: sh.ID, ProductID: "p1", VendorID: "v1", Code: "TRK-AAAAAAAAAAAA", Quantity: 1, CreatedAt: s.now,
		})
		return err
	})
	s.Require().NoError(err)

	got, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal([]string{"v1"}, got.VendorIDs)
}

func (s *StoreSuite) TestTxCreate_RollbackLeavesNothing() {
	ctx := context.Background()
	sh := &domain.Shipment{
		ID: uuid.NewString(), TrackingCode: "SHP-CCCCCCCCCC", OrderID: "o", WarehouseID: "w",
		Status: domain.StatusPreparing, CreatedAt: s.now, UpdatedAt: s.now,
	}
	boom := errors.New("boom")

	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		s.Require().NoError(tx.CreateShipment(ctx, sh))
		_, err := tx.InsertTrackingCode(ctx, &domain.TrackingCode{
			ShipmentID: sh.ID, ProductID: "p1", VendorID: "v1", Code: "TRK-CCCCCCCCCCCC", Quantity: 1, CreatedAt: s.now,
		})
		s.Require().NoError(err)
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Nil(got)
	code, err := s.store.GetTrackingCode(ctx, "TRK-CCCCCCCCCCCC")
	s.Require().NoError(err)
	s.Nil(code)
}

func (s *StoreSuite) TestGetNotFound() {
	got, err := s.store.GetShipment(context.Background(), uuid.NewString())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *StoreSuite) TestInsertSample_Dedupe() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusInTransit)

	sample := &domain.LocationSample{
		ShipmentID: sh.ID,
		DeviceID:   "dev-1",
		Lat:        decimal.RequireFromString("52.52000000"),
		Lon:        decimal.RequireFromString("13.4050000"),
		RecordedAt: s.now,
		ReceivedAt: s.now.Add(time.Second),
	}
	inserted, err := s.store.InsertSample(ctx, sample)
	s.Require().NoError(err)
	s.True(inserted)

	again := *sample
	inserted, err = s.store.InsertSample(ctx, &again)
	s.Require().NoError(err)
	s.False(inserted)

	list, err := s.store.ListSamples(ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.True(list[0].Lat.Equal(sample.Lat))
}

func (s *StoreSuite) TestTrackingCodes() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusPreparing)

	tc := &domain.TrackingCode{ShipmentID: sh.ID, ProductID: "p1", VendorID: "v1", Code: "TRK-AAAAAAAAAAAA", Quantity: 2, CreatedAt: s.now}
	inserted, err := s.store.InsertTrackingCode(ctx, tc)
	s.Require().NoError(err)
	s.True(inserted)

	same := *tc
	same.Code = "TRK-BBBBBBBBBBBB"
	inserted, err = s.store.InsertTrackingCode(ctx, &same)
	s.Require().NoError(err)
	s.False(inserted)

	clash := &domain.TrackingCode{ShipmentID: sh.ID, ProductID: "p2", VendorID: "v2", Code: "TRK-AAAAAAAAAAAA", Quantity: 1, CreatedAt: s.now}
	_, err = s.store.InsertTrackingCode(ctx, clash)
	s.ErrorIs(err, apperr.ErrConflict)

	got, err := s.store.GetTrackingCode(ctx, "TRK-AAAAAAAAAAAA")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("v1", got.VendorID)

	fresh, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal([]string{"v1"}, fresh.VendorIDs)

	list, err := s.store.ListShipments(ctx, domain.ShipmentFilter{VendorID: "v1"})
	s.Require().NoError(err)
	s.Len(list, 1)

	list, err = s.store.ListShipments(ctx, domain.ShipmentFilter{VendorID: "v9"})
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreSuite) TestTx_PositionEventsAndRoute() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusInTransit)

	pos := domain.Position{
		Lat:        decimal.RequireFromString("52.52"),
		Lon:        decimal.RequireFromString("13.405"),
		RecordedAt: s.now,
	}
	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		locked, err := tx.GetShipmentForUpdate(ctx, sh.ID)
		s.Require().NoError(err)
		s.Require().NotNil(locked)

		if err := tx.UpdatePosition(ctx, sh.ID, pos, s.now.Add(time.Second)); err != nil {
			return err
		}
		wp := domain.Waypoint{Lat: pos.Lat, Lon: pos.Lon, Status: domain.StatusInTransit, RecordedAt: s.now}
		if err := tx.AppendWaypoint(ctx, sh.ID, domain.RouteActual, wp); err != nil {
			return err
		}
		locked.CurrentPosition = &pos
		ev := domain.NewLocationEvent(locked, pos, s.now)
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		s.Equal(int64(1), ev.Seq)
		return nil
	})
	s.Require().NoError(err)

	got, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.CurrentPosition)
	s.True(got.CurrentPosition.Lat.Equal(pos.Lat))
	s.Equal(int64(1), got.EventSeq)

	events, err := s.store.ListEvents(ctx, sh.ID, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(domain.EventLocationChanged, events[0].Type)
	s.Require().NotNil(events[0].Position)

	routes, err := s.store.ListRoutes(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(routes, 1)
	s.Equal(domain.RouteActual, routes[0].Type)
	s.Len(routes[0].Waypoints, 1)
}

func (s *StoreSuite) TestTx_RollbackOnError() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusInTransit)

	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		locked, err := tx.GetShipmentForUpdate(ctx, sh.ID)
		s.Require().NoError(err)
		locked.Status = domain.StatusFailed
		locked.UpdatedAt = s.now
		if err := tx.UpdateStatus(ctx, locked); err != nil {
			return err
		}
		return apperr.ErrInvalid
	})
	s.ErrorIs(err, apperr.ErrInvalid)

	got, err := s.store.GetShipment(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusInTransit, got.Status)
}

func (s *StoreSuite) TestDeliveredRequiresActualDelivery() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusOutForDelivery)

	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		sh.Status = domain.StatusDelivered
		return tx.UpdateStatus(ctx, sh)
	})
	s.Require().Error(err)
	s.True(repository.IsCheckViolation(err))
}

func (s *StoreSuite) TestSaveRouteAndReplaceWaypoints() {
	ctx := context.Background()
	sh := s.createShipment("SHP-AAAAAAAAAA", domain.StatusPreparing)

	dist := 12.5
	est := 40
	err := s.store.WithTx(ctx, func(tx trackingtx.Repository) error {
		if err := tx.SaveRoute(ctx, &domain.RouteRecord{
			ShipmentID: sh.ID, Type: domain.RoutePlanned, DistanceKm: &dist, EstimatedDurationMinutes: &est,
		}); err != nil {
			return err
		}
		return tx.ReplaceWaypoints(ctx, sh.ID, domain.RoutePlanned, []domain.Waypoint{
			{Lat: decimal.NewFromInt(1), Lon: decimal.NewFromInt(1), RecordedAt: s.now},
			{Lat: decimal.NewFromInt(2), Lon: decimal.NewFromInt(2), RecordedAt: s.now},
		})
	})
	s.Require().NoError(err)

	routes, err := s.store.ListRoutes(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(routes, 1)
	s.Equal(domain.RoutePlanned, routes[0].Type)
	s.Len(routes[0].Waypoints, 2)
	s.Require().NotNil(routes[0].EstimatedDurationMinutes)
	s.Equal(40, *routes[0].EstimatedDurationMinutes)
	s.False(routes[0].Finalized())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}
