package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// resolvedEntry pairs a submitted entry with the location it targets.
type resolvedEntry struct {
	EntryInput
	Location masters.Location
}

// shape is the per-type entry layout. Each variant checks its own invariant before
// anything reaches storage.
type shape interface {
	arity() int
	check(entries []resolvedEntry, vendorID uuid.UUID) error
}

// transferShape covers DISPATCH (outbound) and RECEIVE (inbound).
type transferShape struct {
	outbound bool
}

// procureShape is a single positive CLEAN entry at a property location.
type procureShape struct{}

// discardShape is a single negative entry at a property location.
type discardShape struct{}

func shapeFor(t TransactionType) (shape, error) {
	switch t {
	case TypeDispatch:
		return transferShape{outbound: true}, nil
	case TypeReceive:
		return transferShape{outbound: false}, nil
	case TypeProcure:
		return procureShape{}, nil
	case TypeDiscard:
		return discardShape{}, nil
	case TypeVoidReversal:
		return nil, fmt.Errorf("%w: %s is created by voiding, not posted", shared.ErrValidation, t)
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, t)
	}
}

func (transferShape) arity() int { return 2 }

func (s transferShape) check(entries []resolvedEntry, vendorID uuid.UUID) error {
	propertySide, vendorSide, err := splitTransfer(entries)
	if err != nil {
		return err
	}
	if !vendorSide.Location.BelongsToVendor(vendorID) {
		return fmt.Errorf("%w: location %s is not the vendor location of vendor %s", shared.ErrValidation, vendorSide.Location.Name, vendorID)
	}
	if propertySide.LinenItemID != vendorSide.LinenItemID {
		return fmt.Errorf("%w: transfer entries must move the same item", shared.ErrValidation)
	}
	if !mirrored(propertySide.QtyDelta, vendorSide.QtyDelta) {
		return fmt.Errorf("%w: transfer entries must be opposite signed with equal quantity", shared.ErrValidation)
	}
	if s.outbound && propertySide.QtyDelta > 0 {
		return fmt.Errorf("%w: dispatch must move stock from the property to the vendor", shared.ErrValidation)
	}
	if !s.outbound && propertySide.QtyDelta < 0 {
		return fmt.Errorf("%w: receive must move stock from the vendor to the property", shared.ErrValidation)
	}
	return nil
}

// mirrored reports whether a and b are non-zero, opposite signed and equal in magnitude.
// It never adds the two, so it cannot wrap.
func mirrored(a, b int64) bool {
	return a != 0 && (a < 0) != (b < 0) && a == -b
}

func splitTransfer(entries []resolvedEntry) (resolvedEntry, resolvedEntry, error) {
	var propertySide, vendorSide []resolvedEntry
	for _, e := range entries {
		if e.Location.Kind == masters.KindVendor {
			vendorSide = append(vendorSide, e)
		} else {
			propertySide = append(propertySide, e)
		}
	}
	if len(propertySide) != 1 || len(vendorSide) != 1 {
		return resolvedEntry{}, resolvedEntry{}, fmt.Errorf("%w: transfer needs one property location and one vendor location", shared.ErrValidation)
	}
	return propertySide[0], vendorSide[0], nil
}

func (procureShape) arity() int { return 1 }

func (procureShape) check(entries []resolvedEntry, _ uuid.UUID) error {
	e := entries[0]
	if e.QtyDelta <= 0 {
		return fmt.Errorf("%w: procure quantity must be positive", shared.ErrValidation)
	}
	if !e.Location.Kind.IsPropertyKind() {
		return fmt.Errorf("%w: procure must target a property location", shared.ErrValidation)
	}
	if e.Condition != ConditionClean {
		return fmt.Errorf("%w: procured stock must be %s", shared.ErrValidation, ConditionClean)
	}
	return nil
}

func (discardShape) arity() int { return 1 }

func (discardShape) check(entries []resolvedEntry, _ uuid.UUID) error {
	e := entries[0]
	if e.QtyDelta >= 0 {
		return fmt.Errorf("%w: discard quantity must be negative", shared.ErrValidation)
	}
	if !e.Location.Kind.IsPropertyKind() {
		return fmt.Errorf("%w: discard must target a property location", shared.ErrValidation)
	}
	return nil
}
