// Package masters holds the reference catalog a posting depends on: properties,
// vendors, linen items and the locations stock can sit in.
package masters

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// LocationKind classifies where stock resides.
type LocationKind string

const (
	// KindStore is the clean linen store of a property.
	KindStore LocationKind = "STORE"
	// KindFloor covers linen issued to floors and rooms.
	KindFloor LocationKind = "FLOOR"
	// KindSoiledRoom collects soiled linen awaiting dispatch.
	KindSoiledRoom LocationKind = "SOILED_ROOM"
	// KindVendor is stock held by a laundry vendor on behalf of a property.
	KindVendor LocationKind = "VENDOR"
)

// IsValid reports whether k is a known kind.
func (k LocationKind) IsValid() bool {
	switch k {
	case KindStore, KindFloor, KindSoiledRoom, KindVendor:
		return true
	}
	return false
}

// IsPropertyKind reports whether k belongs to the property itself rather than a vendor.
func (k LocationKind) IsPropertyKind() bool {
	return k.IsValid() && k != KindVendor
}

// DefaultLocation is one entry of the per-property default catalog.
type DefaultLocation struct {
	Kind LocationKind
	Name string
}

// DefaultLocationCatalog lists the locations every active property must have.
var DefaultLocationCatalog = []DefaultLocation{
	{Kind: KindStore, Name: "Linen Store"},
	{Kind: KindFloor, Name: "Floor Par"},
	{Kind: KindSoiledRoom, Name: "Soiled Room"},
}

// Property is a hotel or site owning locations.
type Property struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	IsActive bool      `json:"is_active"`
}

// Vendor is an external laundry.
type Vendor struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	IsActive bool      `json:"is_active"`
}

// LinenItem is a tracked article. Items are deactivated, never deleted.
type LinenItem struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	SKU      string    `json:"sku"`
	IsActive bool      `json:"is_active"`
}

// Location is a place inventory resides.
type Location struct {
	ID         uuid.UUID    `json:"id"`
	PropertyID uuid.UUID    `json:"property_id"`
	VendorID   *uuid.UUID   `json:"vendor_id,omitempty"`
	Kind       LocationKind `json:"kind"`
	Name       string       `json:"name"`
	IsActive   bool         `json:"is_active"`
	CreatedAt  time.Time    `json:"created_at"`
}

// BelongsToVendor reports whether the location is the vendor location of vendorID.
func (l Location) BelongsToVendor(vendorID uuid.UUID) bool {
	return l.Kind == KindVendor && l.VendorID != nil && *l.VendorID == vendorID
}

// VendorLocationName derives the location name for a vendor. Equivalent spellings of
// the same vendor name always produce the same location name.
func VendorLocationName(vendorName string) string {
	name := norm.NFC.String(strings.Join(strings.Fields(vendorName), " "))
	return name + " (Vendor)"
}

// SweepReport summarises a self-heal sweep.
type SweepReport struct {
	Properties int `json:"properties"`
	Vendors    int `json:"vendors"`
	Created    int `json:"created"`
}
