package distributor

import "shipment-tracker/internal/domain"

// ScopeKind selects which events a subscription receives.
type ScopeKind int

// Subscription scopes
const (
	ScopeShipment ScopeKind = iota + 1
	ScopeVendor
	ScopeAdmin
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeShipment:
		return "shipment"
	case ScopeVendor:
		return "vendor"
	case ScopeAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Scope is a subscription filter.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// ShipmentScope receives the events of one shipment.
func ShipmentScope(shipmentID string) Scope { return Scope{Kind: ScopeShipment, ID: shipmentID} }

// VendorScope receives the events of shipments carrying the vendor's goods.
func VendorScope(vendorID string) Scope { return Scope{Kind: ScopeVendor, ID: vendorID} }

// AdminScope receives every event.
func AdminScope() Scope { return Scope{Kind: ScopeAdmin} }

// Valid reports whether the scope can be subscribed to.
func (s Scope) Valid() bool {
	switch s.Kind {
	case ScopeShipment, ScopeVendor:
		return s.ID != ""
	case ScopeAdmin:
		return true
	default:
		return false
	}
}

// Matches reports whether ev is visible in the scope.
func (s Scope) Matches(ev domain.Event) bool {
	switch s.Kind {
	case ScopeShipment:
		return ev.ShipmentID == s.ID
	case ScopeVendor:
		for _, v := range ev.VendorIDs {
			if v == s.ID {
				return true
			}
		}
		return false
	case ScopeAdmin:
		return true
	default:
		return false
	}
}
