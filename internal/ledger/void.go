package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// VoidEngine cancels a transaction by appending its exact negation.
type VoidEngine struct {
	store Store
	now   func() time.Time
}

// NewVoidEngine constructs VoidEngine.
func NewVoidEngine(store Store) *VoidEngine {
	return &VoidEngine{store: store, now: time.Now}
}

// Void flags the original as voided and writes a VOID_REVERSAL whose entries negate it,
// both in one commit. It returns the reversal header.
func (v *VoidEngine) Void(ctx context.Context, transactionID, voidedByID uuid.UUID, reason string) (Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Transaction{}, fmt.Errorf("%w: void reason required", shared.ErrValidation)
	}
	original, err := v.store.GetHeader(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if original.Voided {
		return Transaction{}, fmt.Errorf("%w: transaction %s", shared.ErrAlreadyVoided, transactionID)
	}
	if original.Type == TypeVoidReversal {
		return Transaction{}, fmt.Errorf("%w: %s transactions cannot be voided", shared.ErrValidation, original.Type)
	}
	entries, err := v.store.GetEntries(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}

	now := v.now().UTC()
	originalID := original.ID
	reversal := Transaction{
		ID:          uuid.New(),
		Type:        TypeVoidReversal,
		PropertyID:  original.PropertyID,
		CreatedByID: voidedByID,
		CreatedAt:   now,
		ReversalOf:  &originalID,
	}
	negated := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.QtyDelta > MaxQtyMagnitude || e.QtyDelta < -MaxQtyMagnitude {
			return Transaction{}, fmt.Errorf("%w: entry %s quantity %d cannot be reversed", shared.ErrValidation, e.ID, e.QtyDelta)
		}
		negated = append(negated, Entry{
			ID:            uuid.New(),
			TransactionID: reversal.ID,
			LocationID:    e.LocationID,
			LinenItemID:   e.LinenItemID,
			Condition:     e.Condition,
			QtyDelta:      -e.QtyDelta,
			CreatedAt:     now,
		})
	}

	err = v.store.Void(ctx, VoidCommand{
		OriginalID: original.ID,
		VoidedByID: voidedByID,
		VoidedAt:   now,
		Reason:     reason,
		Reversal:   reversal,
		Entries:    negated,
	})
	if err != nil {
		return Transaction{}, err
	}
	return reversal, nil
}
