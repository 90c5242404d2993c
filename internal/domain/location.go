package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fractional digits kept for coordinates.
const (
	LatPrecision = 8
	LonPrecision = 7
)

var (
	maxLat = decimal.NewFromInt(90)
	minLat = decimal.NewFromInt(-90)
	maxLon = decimal.NewFromInt(180)
	minLon = decimal.NewFromInt(-180)
)

// Position is the last trusted fix of a shipment.
type Position struct {
	Lat          decimal.Decimal
	Lon          decimal.Decimal
	Accuracy     *float64
	Heading      *float64
	Speed        *float64
	Altitude     *float64
	BatteryLevel *float64
	RecordedAt   time.Time
}

// LocationSample is one raw GPS reading. Samples are immutable once stored.
type LocationSample struct {
	ID              int64
	ShipmentID      string
	DeviceID        string
	Lat             decimal.Decimal
	Lon             decimal.Decimal
	Accuracy        *float64
	Speed           *float64
	Heading         *float64
	Altitude        *float64
	BatteryLevel    *float64
	IsOfflineReplay bool
	RecordedAt      time.Time
	ReceivedAt      time.Time
}

// Normalize rounds coordinates to their stored precision and times to UTC.
func (s *LocationSample) Normalize() {
	s.Lat = s.Lat.Round(LatPrecision)
	s.Lon = s.Lon.Round(LonPrecision)
	s.RecordedAt = s.RecordedAt.UTC()
	s.ReceivedAt = s.ReceivedAt.UTC()
}

// Position projects the sample onto a shipment position.
func (s LocationSample) Position() Position {
	return Position{
		Lat:          s.Lat,
		Lon:          s.Lon,
		Accuracy:     s.Accuracy,
		Heading:      s.Heading,
		Speed:        s.Speed,
		Altitude:     s.Altitude,
		BatteryLevel: s.BatteryLevel,
		RecordedAt:   s.RecordedAt,
	}
}

// ValidCoordinates checks latitude and longitude ranges.
func ValidCoordinates(lat, lon decimal.Decimal) bool {
	return lat.GreaterThanOrEqual(minLat) && lat.LessThanOrEqual(maxLat) &&
		lon.GreaterThanOrEqual(minLon) && lon.LessThanOrEqual(maxLon)
}

// IngestResult describes what Ingest did with an accepted sample.
type IngestResult struct {
	Stored           bool
	Duplicate        bool
	PositionUpdated  bool
	WaypointAppended bool
	Position         *Position
}
