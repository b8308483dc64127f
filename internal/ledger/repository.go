package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/linen-ledger/internal/platform/db"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const (
	insertHeaderSQL = `INSERT INTO ledger_transactions
    (id, type, property_id, created_by_id, created_at, voided, reversal_of)
VALUES ($1, $2, $3, $4, $5, false, $6)`

	insertEntrySQL = `INSERT INTO ledger_entries
    (id, transaction_id, location_id, linen_item_id, condition, qty_delta, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	markVoidedSQL = `UPDATE ledger_transactions
SET voided = true, voided_by_id = $2, voided_at = $3, reason = $4
WHERE id = $1 AND NOT voided AND type <> 'VOID_REVERSAL'`

	selectHeaderSQL = `SELECT id, type, property_id, created_by_id, created_at, voided,
    voided_by_id, voided_at, COALESCE(reason, ''), reversal_of
FROM ledger_transactions WHERE id = $1`

	selectEntriesSQL = `SELECT id, transaction_id, location_id, linen_item_id, condition, qty_delta, created_at
FROM ledger_entries WHERE transaction_id = $1 ORDER BY qty_delta, id`

	// Balances include the entries of voided transactions; their reversals cancel them.
	sumBalancesSQL = `SELECT e.location_id, e.linen_item_id, e.condition, SUM(e.qty_delta)::bigint
FROM ledger_entries e
JOIN locations l ON l.id = e.location_id
WHERE ($1::uuid IS NULL OR l.property_id = $1)
  AND ($2::uuid IS NULL OR e.location_id = $2)
  AND ($3::uuid IS NULL OR e.linen_item_id = $3)
  AND ($4::text IS NULL OR e.condition = $4)
GROUP BY e.location_id, e.linen_item_id, e.condition`

	sumVendorPendingSQL = `SELECT v.id, v.name, SUM(e.qty_delta)::bigint
FROM ledger_entries e
JOIN locations l ON l.id = e.location_id
JOIN vendors v ON v.id = l.vendor_id
WHERE l.property_id = $1 AND l.kind = 'VENDOR' AND v.is_active
GROUP BY v.id, v.name`

	// Shares the row lock location deactivation takes FOR UPDATE.
	lockActiveLocationsSQL = `SELECT COUNT(*) FROM (
    SELECT id FROM locations WHERE id = ANY($1) AND is_active FOR SHARE
) active`

	explainVoidSQL = `SELECT type, voided FROM ledger_transactions WHERE id = $1`
)

// PostAtomic implements Store. The referenced locations stay share-locked until commit,
// so a location cannot be deactivated between the posting's activity check and its insert.
func (r *Repository) PostAtomic(ctx context.Context, header Transaction, entries []Entry) (uuid.UUID, error) {
	err := db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockActiveLocations(ctx, tx, entries); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, header, entries)
	})
	if err != nil {
		return uuid.Nil, storageErr("post transaction", err)
	}
	return header.ID, nil
}

// Void implements Store.
func (r *Repository) Void(ctx context.Context, cmd VoidCommand) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := markVoided(ctx, tx, cmd); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, cmd.Reversal, cmd.Entries)
	})
	if err != nil {
		return storageErr("void transaction", err)
	}
	return nil
}

// lockActiveLocations share-locks every location the entries touch and fails validation
// when one of them is no longer active.
func lockActiveLocations(ctx context.Context, q db.Querier, entries []Entry) error {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if !slices.Contains(ids, e.LocationID) {
			ids = append(ids, e.LocationID)
		}
	}
	var active int
	if err := q.QueryRow(ctx, lockActiveLocationsSQL, ids).Scan(&active); err != nil {
		return err
	}
	if active != len(ids) {
		return fmt.Errorf("%w: a location was deactivated while posting", shared.ErrValidation)
	}
	return nil
}

// markVoided flips the original's void flag, explaining a miss.
func markVoided(ctx context.Context, q db.Querier, cmd VoidCommand) error {
	tag, err := q.Exec(ctx, markVoidedSQL, cmd.OriginalID, cmd.VoidedByID, cmd.VoidedAt, cmd.Reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return explainUnvoidable(ctx, q, cmd.OriginalID)
	}
	return nil
}

// explainUnvoidable resolves why the conditional update matched no row.
func explainUnvoidable(ctx context.Context, q db.Querier, id uuid.UUID) error {
	var (
		txType string
		voided bool
	)
	err := q.QueryRow(ctx, explainVoidSQL, id).Scan(&txType, &voided)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: transaction %s", shared.ErrNotFound, id)
	case err != nil:
		return err
	case voided:
		return fmt.Errorf("%w: transaction %s", shared.ErrAlreadyVoided, id)
	default:
		return fmt.Errorf("%w: %s transactions cannot be voided", shared.ErrValidation, txType)
	}
}

func insertTransaction(ctx context.Context, tx pgx.Tx, header Transaction, entries []Entry) error {
	if _, err := tx.Exec(ctx, insertHeaderSQL,
		header.ID, string(header.Type), header.PropertyID, header.CreatedByID, header.CreatedAt, header.ReversalOf,
	); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertEntrySQL, e.ID, e.TransactionID, e.LocationID, e.LinenItemID, string(e.Condition), e.QtyDelta, e.CreatedAt)
	}
	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// GetHeader implements Store.
func (r *Repository) GetHeader(ctx context.Context, id uuid.UUID) (Transaction, error) {
	var (
		t      Transaction
		txType string
	)
	err := r.pool.QueryRow(ctx, selectHeaderSQL, id).Scan(
		&t.ID, &txType, &t.PropertyID, &t.CreatedByID, &t.CreatedAt, &t.Voided,
		&t.VoidedByID, &t.VoidedAt, &t.Reason, &t.ReversalOf,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: transaction %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return Transaction{}, storageErr("get transaction", err)
	}
	t.Type = TransactionType(txType)
	return t, nil
}

// GetEntries implements Store.
func (r *Repository) GetEntries(ctx context.Context, transactionID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntriesSQL, transactionID)
	if err != nil {
		return nil, storageErr("get entries", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e         Entry
			condition string
		)
		err := row.Scan(&e.ID, &e.TransactionID, &e.LocationID, &e.LinenItemID, &condition, &e.QtyDelta, &e.CreatedAt)
		e.Condition = Condition(condition)
		return e, err
	})
	if err != nil {
		return nil, storageErr("get entries", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", shared.ErrNotFound, transactionID)
	}
	return entries, nil
}

// SumBalances implements Store.
func (r *Repository) SumBalances(ctx context.Context, filter BalanceFilter) ([]BalanceRow, error) {
	var condition *string
	if filter.Condition != nil {
		c := string(*filter.Condition)
		condition = &c
	}
	rows, err := r.pool.Query(ctx, sumBalancesSQL, filter.PropertyID, filter.LocationID, filter.LinenItemID, condition)
	if err != nil {
		return nil, storageErr("sum balances", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (BalanceRow, error) {
		var (
			b BalanceRow
			c string
		)
		err := row.Scan(&b.LocationID, &b.LinenItemID, &c, &b.Qty)
		b.Condition = Condition(c)
		return b, err
	})
	if err != nil {
		return nil, storageErr("sum balances", err)
	}
	return out, nil
}

// SumVendorPending implements Store.
func (r *Repository) SumVendorPending(ctx context.Context, propertyID uuid.UUID) ([]VendorPending, error) {
	rows, err := r.pool.Query(ctx, sumVendorPendingSQL, propertyID)
	if err != nil {
		return nil, storageErr("sum vendor pending", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (VendorPending, error) {
		var v VendorPending
		err := row.Scan(&v.VendorID, &v.VendorName, &v.PendingQty)
		return v, err
	})
	if err != nil {
		return nil, storageErr("sum vendor pending", err)
	}
	return out, nil
}

// storageErr wraps driver failures in ErrStorage, passing domain errors through.
func storageErr(op string, err error) error {
	for _, domain := range []error{shared.ErrNotFound, shared.ErrAlreadyVoided, shared.ErrValidation} {
		if errors.Is(err, domain) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
	return fmt.Errorf("%w: ledger: %s: %v", shared.ErrStorage, op, err)
}
