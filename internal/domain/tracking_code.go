package domain

import (
	"sort"
	"time"
)

// LineItem is an order line as seen by fulfillment.
type LineItem struct {
	ProductID string
	VendorID  string
	Quantity  int
}

// TrackingCode binds a (shipment, product, vendor) triple to a vendor-visible code.
type TrackingCode struct {
	ShipmentID string
	ProductID  string
	VendorID   string
	Code       string
	Quantity   int
	CreatedAt  time.Time
}

// VendorTracking is what a vendor sees when resolving one of their codes.
type VendorTracking struct {
	Shipment  Shipment
	ProductID string
	Code      string
	Quantity  int
}

// GroupLineItems folds line items into one entry per distinct (product, vendor)
// pair with summed quantities, sorted by vendor then product.
func GroupLineItems(items []LineItem) []LineItem {
	type key struct{ product, vendor string }
	sums := make(map[key]int, len(items))
	for _, it := range items {
		sums[key{it.ProductID, it.VendorID}] += it.Quantity
	}
	out := make([]LineItem, 0, len(sums))
	for k, q := range sums {
		out = append(out, LineItem{ProductID: k.product, VendorID: k.vendor, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VendorID != out[j].VendorID {
			return out[i].VendorID < out[j].VendorID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
