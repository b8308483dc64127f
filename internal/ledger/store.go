package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the ledger. Implementations never update or delete entries.
type Store interface {
	// PostAtomic writes a header and its entries in one commit.
	PostAtomic(ctx context.Context, header Transaction, entries []Entry) (uuid.UUID, error)
	// Void flags the original and writes the reversal in one commit. It returns
	// ErrAlreadyVoided when another caller flagged the original first.
	Void(ctx context.Context, cmd VoidCommand) error
	GetHeader(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetEntries(ctx context.Context, transactionID uuid.UUID) ([]Entry, error)
	// SumBalances returns the signed sum of every matching entry per key, zero sums included.
	SumBalances(ctx context.Context, filter BalanceFilter) ([]BalanceRow, error)
	// SumVendorPending returns the summed vendor-location quantity per active vendor of a property.
	SumVendorPending(ctx context.Context, propertyID uuid.UUID) ([]VendorPending, error)
}
