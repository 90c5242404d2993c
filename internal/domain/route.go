package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// RouteType distinguishes planned and actual route records.
type RouteType string

// Route types
const (
	RoutePlanned RouteType = "planned"
	RouteActual  RouteType = "actual"
)

// Valid checks if the RouteType is valid
func (t RouteType) Valid() bool {
	return t == RoutePlanned || t == RouteActual
}

// Waypoint is one point of a route. Status is the shipment status when the
// point was recorded (empty for planned points).
type Waypoint struct {
	Lat        decimal.Decimal
	Lon        decimal.Decimal
	Status     ShipmentStatus
	RecordedAt time.Time
}

// RouteRecord accumulates waypoints of one route type for a shipment.
type RouteRecord struct {
	ShipmentID               string
	Type                     RouteType
	Waypoints                []Waypoint
	DistanceKm               *float64
	EstimatedDurationMinutes *int
	ActualDurationMinutes    *int
	FinalizedAt              *time.Time
}

// Finalized reports whether distance and duration were already derived.
func (r *RouteRecord) Finalized() bool {
	return r != nil && r.FinalizedAt != nil
}

const earthRadiusKm = 6371.0088

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 decimal.Decimal) float64 {
	toRad := func(d decimal.Decimal) float64 {
		f, _ := d.Float64()
		return f * math.Pi / 180
	}
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := phi2 - phi1
	dLambda := toRad(lon2) - toRad(lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// PathDistanceKm sums great-circle distances between consecutive waypoints.
func PathDistanceKm(points []Waypoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		p, q := points[i-1], points[i]
		total += HaversineKm(p.Lat, p.Lon, q.Lat, q.Lon)
	}
	return total
}
