package ledger

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

func TestVoidWritesExactNegation(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	id, err := NewPoster(w.store, w.catalog).Post(ctx, w.dispatch(10, w.soiled, w.vendorAt))
	require.NoError(t, err)
	original, err := w.store.GetEntries(ctx, id)
	require.NoError(t, err)

	admin := uuid.New()
	reversal, err := NewVoidEngine(w.store).Void(ctx, id, admin, "  wrong vendor ")
	require.NoError(t, err)
	require.Equal(t, TypeVoidReversal, reversal.Type)
	require.Equal(t, w.property.ID, reversal.PropertyID)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, id, *reversal.ReversalOf)

	header, err := w.store.GetHeader(ctx, id)
	require.NoError(t, err)
	require.True(t, header.Voided)
	require.Equal(t, admin, *header.VoidedByID)
	require.NotNil(t, header.VoidedAt)
	require.Equal(t, "wrong vendor", header.Reason)

	negated, err := w.store.GetEntries(ctx, reversal.ID)
	require.NoError(t, err)
	require.Len(t, negated, len(original))
	for i := range original {
		require.Equal(t, original[i].LocationID, negated[i].LocationID)
		require.Equal(t, original[i].LinenItemID, negated[i].LinenItemID)
		require.Equal(t, original[i].Condition, negated[i].Condition)
		require.Equal(t, -original[i].QtyDelta, negated[i].QtyDelta)
	}

	// the original entries are still in the log
	again, err := w.store.GetEntries(ctx, id)
	require.NoError(t, err)
	require.Equal(t, original, again)
}

func TestVoidTwiceIsAlreadyVoided(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	id, err := NewPoster(w.store, w.catalog).Post(ctx, w.dispatch(4, w.soiled, w.vendorAt))
	require.NoError(t, err)
	engine := NewVoidEngine(w.store)

	first := uuid.New()
	_, err = engine.Void(ctx, id, first, "duplicate")
	require.NoError(t, err)
	before := w.store.entryCount()
	voided, err := w.store.GetHeader(ctx, id)
	require.NoError(t, err)

	engine.now = func() time.Time { return voided.VoidedAt.Add(time.Hour) }
	_, err = engine.Void(ctx, id, uuid.New(), "second thoughts")
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)
	require.Equal(t, before, w.store.entryCount())

	after, err := w.store.GetHeader(ctx, id)
	require.NoError(t, err)
	require.True(t, after.Voided)
	require.Equal(t, first, *after.VoidedByID)
	require.True(t, voided.VoidedAt.Equal(*after.VoidedAt))
	require.Equal(t, "duplicate", after.Reason)
}

func TestVoidConcurrentCallersProduceOneReversal(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	id, err := NewPoster(w.store, w.catalog).Post(ctx, w.dispatch(4, w.soiled, w.vendorAt))
	require.NoError(t, err)
	engine := NewVoidEngine(w.store)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.Void(ctx, id, uuid.New(), "race")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, shared.ErrAlreadyVoided)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 4, w.store.entryCount())
}

func TestVoidRejectsReversalsAndBlankReasons(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	id, err := NewPoster(w.store, w.catalog).Post(ctx, w.dispatch(4, w.soiled, w.vendorAt))
	require.NoError(t, err)
	engine := NewVoidEngine(w.store)

	_, err = engine.Void(ctx, id, uuid.New(), "   ")
	require.ErrorIs(t, err, shared.ErrValidation)

	reversal, err := engine.Void(ctx, id, uuid.New(), "mistake")
	require.NoError(t, err)
	_, err = engine.Void(ctx, reversal.ID, uuid.New(), "undo the undo")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = engine.Void(ctx, uuid.New(), uuid.New(), "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVoidRoundTripAtMaximumQuantity(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	id, err := NewPoster(w.store, w.catalog).Post(ctx, PostInput{Type: TypeDiscard, PropertyID: w.property.ID, ActorID: uuid.New(), Entries: []EntryInput{
		{LocationID: w.linen.ID, LinenItemID: w.sheet.ID, Condition: ConditionDamaged, QtyDelta: -MaxQtyMagnitude},
	}})
	require.NoError(t, err)

	_, err = NewVoidEngine(w.store).Void(ctx, id, uuid.New(), "miscount")
	require.NoError(t, err)

	rows, err := w.store.SumBalances(ctx, BalanceFilter{LocationID: &w.linen.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].Qty)
}

func TestVoidRefusesUnreversibleQuantities(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	header := Transaction{ID: uuid.New(), Type: TypeDiscard, PropertyID: w.property.ID, CreatedByID: uuid.New(), CreatedAt: time.Now().UTC()}
	_, err := w.store.PostAtomic(ctx, header, []Entry{{
		ID: uuid.New(), TransactionID: header.ID, LocationID: w.linen.ID, LinenItemID: w.sheet.ID,
		Condition: ConditionDamaged, QtyDelta: math.MinInt64, CreatedAt: header.CreatedAt,
	}})
	require.NoError(t, err)

	_, err = NewVoidEngine(w.store).Void(ctx, header.ID, uuid.New(), "overflow")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 1, w.store.entryCount())
	stored, err := w.store.GetHeader(ctx, header.ID)
	require.NoError(t, err)
	require.False(t, stored.Voided)
}
