package ledger

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// DefaultVendorPendingLimit is used when a caller passes no positive limit.
const DefaultVendorPendingLimit = 3

// Aggregator derives balances from the entry log. It never consults the voided flag:
// a voided transaction and its reversal always sum to zero.
type Aggregator struct {
	store        Store
	defaultLimit int
}

// NewAggregator constructs Aggregator.
func NewAggregator(store Store, defaultLimit int) *Aggregator {
	if defaultLimit <= 0 {
		defaultLimit = DefaultVendorPendingLimit
	}
	return &Aggregator{store: store, defaultLimit: defaultLimit}
}

// Balance returns the non-zero balances matching filter, ordered by location, item
// then condition.
func (a *Aggregator) Balance(ctx context.Context, filter BalanceFilter) ([]BalanceRow, error) {
	if filter.Condition != nil && !filter.Condition.IsValid() {
		return nil, fmt.Errorf("%w: unknown condition %q", shared.ErrValidation, *filter.Condition)
	}
	rows, err := a.store.SumBalances(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows = slices.DeleteFunc(rows, func(r BalanceRow) bool { return r.Qty == 0 })
	slices.SortFunc(rows, func(x, y BalanceRow) int {
		if c := compareUUID(x.LocationID, y.LocationID); c != 0 {
			return c
		}
		if c := compareUUID(x.LinenItemID, y.LinenItemID); c != 0 {
			return c
		}
		return cmp.Compare(x.Condition, y.Condition)
	})
	return rows, nil
}

// TopVendorPending ranks the vendors of a property by the quantity they hold, largest
// first, ties broken by name. Vendors holding nothing are omitted.
func (a *Aggregator) TopVendorPending(ctx context.Context, propertyID uuid.UUID, limit int) ([]VendorPending, error) {
	if limit <= 0 {
		limit = a.defaultLimit
	}
	rows, err := a.store.SumVendorPending(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	rows = slices.DeleteFunc(rows, func(v VendorPending) bool { return v.PendingQty == 0 })
	slices.SortFunc(rows, func(x, y VendorPending) int {
		if c := cmp.Compare(y.PendingQty, x.PendingQty); c != 0 {
			return c
		}
		if c := cmp.Compare(x.VendorName, y.VendorName); c != 0 {
			return c
		}
		return compareUUID(x.VendorID, y.VendorID)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
