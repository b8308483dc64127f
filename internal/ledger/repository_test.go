package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// scriptedRow scans fixed values into its destinations.
type scriptedRow struct {
	values []any
	err    error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

// scriptedQuerier answers statements from a script keyed by SQL text and records the
// order they ran in.
type scriptedQuerier struct {
	rows  map[string]scriptedRow
	tags  map[string]string
	errs  map[string]error
	calls []string
	args  [][]any
}

func (q *scriptedQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls = append(q.calls, sql)
	q.args = append(q.args, args)
	if err := q.errs[sql]; err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag(q.tags[sql]), nil
}

func (q *scriptedQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.calls = append(q.calls, sql)
	q.args = append(q.args, args)
	row, ok := q.rows[sql]
	if !ok {
		return scriptedRow{err: fmt.Errorf("unscripted query: %s", sql)}
	}
	return row
}

func voidCommand() VoidCommand {
	return VoidCommand{OriginalID: uuid.New(), VoidedByID: uuid.New(), VoidedAt: time.Now().UTC(), Reason: "miscount"}
}

func TestMarkVoidedExplainsAMiss(t *testing.T) {
	cases := map[string]struct {
		row  scriptedRow
		want error
	}{
		"missing transaction": {row: scriptedRow{err: pgx.ErrNoRows}, want: shared.ErrNotFound},
		"already voided":      {row: scriptedRow{values: []any{"DISPATCH", true}}, want: shared.ErrAlreadyVoided},
		"reversal":            {row: scriptedRow{values: []any{"VOID_REVERSAL", false}}, want: shared.ErrValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			q := &scriptedQuerier{
				tags: map[string]string{markVoidedSQL: "UPDATE 0"},
				rows: map[string]scriptedRow{explainVoidSQL: tc.row},
			}
			err := markVoided(context.Background(), q, voidCommand())
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, []string{markVoidedSQL, explainVoidSQL}, q.calls)

			// the store surfaces the domain error unchanged
			wrapped := storageErr("void transaction", err)
			require.ErrorIs(t, wrapped, tc.want)
			require.NotErrorIs(t, wrapped, shared.ErrStorage)
		})
	}
}

func TestMarkVoidedWinnerSkipsExplanation(t *testing.T) {
	q := &scriptedQuerier{tags: map[string]string{markVoidedSQL: "UPDATE 1"}}
	cmd := voidCommand()
	require.NoError(t, markVoided(context.Background(), q, cmd))
	require.Equal(t, []string{markVoidedSQL}, q.calls)
	require.Equal(t, []any{cmd.OriginalID, cmd.VoidedByID, cmd.VoidedAt, cmd.Reason}, q.args[0])
}

func TestMarkVoidedDriverFailureIsStorage(t *testing.T) {
	q := &scriptedQuerier{errs: map[string]error{markVoidedSQL: errors.New("connection reset")}}
	err := storageErr("void transaction", markVoided(context.Background(), q, voidCommand()))
	require.ErrorIs(t, err, shared.ErrStorage)

	q = &scriptedQuerier{
		tags: map[string]string{markVoidedSQL: "UPDATE 0"},
		rows: map[string]scriptedRow{explainVoidSQL: {err: errors.New("connection reset")}},
	}
	err = storageErr("void transaction", markVoided(context.Background(), q, voidCommand()))
	require.ErrorIs(t, err, shared.ErrStorage)
}

func TestLockActiveLocationsRejectsDeactivatedLocation(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	entries := []Entry{{LocationID: a}, {LocationID: b}, {LocationID: a}}

	q := &scriptedQuerier{rows: map[string]scriptedRow{lockActiveLocationsSQL: {values: []any{2}}}}
	require.NoError(t, lockActiveLocations(context.Background(), q, entries))
	require.Equal(t, []any{[]uuid.UUID{a, b}}, q.args[0])

	q = &scriptedQuerier{rows: map[string]scriptedRow{lockActiveLocationsSQL: {values: []any{1}}}}
	err := lockActiveLocations(context.Background(), q, entries)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, storageErr("post transaction", err), shared.ErrValidation)
}

func TestStorageErr(t *testing.T) {
	cases := map[string]struct {
		err       error
		want      error
		isStorage bool
	}{
		"not found":      {err: fmt.Errorf("%w: tx", shared.ErrNotFound), want: shared.ErrNotFound},
		"already voided": {err: fmt.Errorf("%w: tx", shared.ErrAlreadyVoided), want: shared.ErrAlreadyVoided},
		"validation":     {err: fmt.Errorf("%w: inactive", shared.ErrValidation), want: shared.ErrValidation},
		"deadline":       {err: context.DeadlineExceeded, want: context.DeadlineExceeded},
		"canceled":       {err: fmt.Errorf("begin: %w", context.Canceled), want: context.Canceled},
		"driver":         {err: &pgconn.PgError{Code: "57P01"}, want: shared.ErrStorage, isStorage: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := storageErr("op", tc.err)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, tc.isStorage, errors.Is(err, shared.ErrStorage))
		})
	}
}

func TestAggregateQueriesIgnoreVoidedFlag(t *testing.T) {
	for name, query := range map[string]string{
		"balances":       sumBalancesSQL,
		"vendor pending": sumVendorPendingSQL,
	} {
		require.NotContains(t, strings.ToLower(query), "voided", name)
		require.Contains(t, query, "ledger_entries", name)
	}
}

func TestLedgerLocksAreCompatibleWithDeactivation(t *testing.T) {
	require.Contains(t, markVoidedSQL, "NOT voided")
	require.Contains(t, markVoidedSQL, "'VOID_REVERSAL'")
	require.Contains(t, lockActiveLocationsSQL, "is_active FOR SHARE")
}
