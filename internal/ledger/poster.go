package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Catalog resolves the reference data a posting depends on.
type Catalog interface {
	GetProperty(ctx context.Context, id uuid.UUID) (masters.Property, error)
	GetVendor(ctx context.Context, id uuid.UUID) (masters.Vendor, error)
	GetLinenItem(ctx context.Context, id uuid.UUID) (masters.LinenItem, error)
	GetLocation(ctx context.Context, id uuid.UUID) (masters.Location, error)
}

// Poster validates a transaction against its shape and commits it atomically.
type Poster struct {
	store   Store
	catalog Catalog
	now     func() time.Time
}

// NewPoster constructs Poster.
func NewPoster(store Store, catalog Catalog) *Poster {
	return &Poster{store: store, catalog: catalog, now: time.Now}
}

// Post records a DISPATCH, RECEIVE, PROCURE or DISCARD. Nothing is written unless every
// check passes.
func (p *Poster) Post(ctx context.Context, in PostInput) (uuid.UUID, error) {
	sh, err := shapeFor(in.Type)
	if err != nil {
		return uuid.Nil, err
	}
	if len(in.Entries) != sh.arity() {
		return uuid.Nil, fmt.Errorf("%w: %s expects %d entries, got %d", shared.ErrValidation, in.Type, sh.arity(), len(in.Entries))
	}
	if in.ActorID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: creator required", shared.ErrValidation)
	}

	property, err := p.catalog.GetProperty(ctx, in.PropertyID)
	if err != nil {
		return uuid.Nil, err
	}
	if !property.IsActive {
		return uuid.Nil, fmt.Errorf("%w: property %s is inactive", shared.ErrValidation, property.Name)
	}

	resolved := make([]resolvedEntry, 0, len(in.Entries))
	for _, e := range in.Entries {
		r, err := p.resolve(ctx, in, e)
		if err != nil {
			return uuid.Nil, err
		}
		resolved = append(resolved, r)
	}

	vendorID, err := p.resolveVendor(ctx, in, resolved)
	if err != nil {
		return uuid.Nil, err
	}
	if err := sh.check(resolved, vendorID); err != nil {
		return uuid.Nil, err
	}

	now := p.now().UTC()
	header := Transaction{
		ID:          uuid.New(),
		Type:        in.Type,
		PropertyID:  in.PropertyID,
		CreatedByID: in.ActorID,
		CreatedAt:   now,
	}
	entries := make([]Entry, 0, len(resolved))
	for _, r := range resolved {
		entries = append(entries, Entry{
			ID:            uuid.New(),
			TransactionID: header.ID,
			LocationID:    r.LocationID,
			LinenItemID:   r.LinenItemID,
			Condition:     r.Condition,
			QtyDelta:      r.QtyDelta,
			CreatedAt:     now,
		})
	}
	return p.store.PostAtomic(ctx, header, entries)
}

func (p *Poster) resolve(ctx context.Context, in PostInput, e EntryInput) (resolvedEntry, error) {
	if e.QtyDelta == 0 {
		return resolvedEntry{}, fmt.Errorf("%w: quantity must be non-zero", shared.ErrValidation)
	}
	if e.QtyDelta > MaxQtyMagnitude || e.QtyDelta < -MaxQtyMagnitude {
		return resolvedEntry{}, fmt.Errorf("%w: quantity %d exceeds %d", shared.ErrValidation, e.QtyDelta, MaxQtyMagnitude)
	}
	if e.Condition == "" && in.Type == TypeProcure {
		e.Condition = ConditionClean
	}
	if !e.Condition.IsValid() {
		return resolvedEntry{}, fmt.Errorf("%w: unknown condition %q", shared.ErrValidation, e.Condition)
	}
	loc, err := p.catalog.GetLocation(ctx, e.LocationID)
	if err != nil {
		return resolvedEntry{}, err
	}
	if loc.PropertyID != in.PropertyID {
		return resolvedEntry{}, fmt.Errorf("%w: location %s belongs to another property", shared.ErrValidation, loc.Name)
	}
	if !loc.IsActive {
		return resolvedEntry{}, fmt.Errorf("%w: location %s is inactive", shared.ErrValidation, loc.Name)
	}
	item, err := p.catalog.GetLinenItem(ctx, e.LinenItemID)
	if err != nil {
		return resolvedEntry{}, err
	}
	if !item.IsActive {
		return resolvedEntry{}, fmt.Errorf("%w: linen item %s is inactive", shared.ErrValidation, item.Name)
	}
	return resolvedEntry{EntryInput: e, Location: loc}, nil
}

// resolveVendor returns the vendor a transfer moves stock with. Single-entry types
// carry no vendor.
func (p *Poster) resolveVendor(ctx context.Context, in PostInput, resolved []resolvedEntry) (uuid.UUID, error) {
	if in.Type != TypeDispatch && in.Type != TypeReceive {
		if in.VendorID != nil {
			return uuid.Nil, fmt.Errorf("%w: %s does not take a vendor", shared.ErrValidation, in.Type)
		}
		return uuid.Nil, nil
	}
	var vendorID uuid.UUID
	switch {
	case in.VendorID != nil:
		vendorID = *in.VendorID
	default:
		for _, r := range resolved {
			if r.Location.Kind == masters.KindVendor && r.Location.VendorID != nil {
				vendorID = *r.Location.VendorID
			}
		}
	}
	if vendorID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: transfer needs a vendor location", shared.ErrValidation)
	}
	vendor, err := p.catalog.GetVendor(ctx, vendorID)
	if err != nil {
		return uuid.Nil, err
	}
	if !vendor.IsActive {
		return uuid.Nil, fmt.Errorf("%w: vendor %s is inactive", shared.ErrValidation, vendor.Name)
	}
	return vendorID, nil
}
