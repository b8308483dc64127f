package masters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/linen-ledger/internal/platform/db"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Repository persists the masters catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const locationColumns = `id, property_id, vendor_id, kind, name, is_active, created_at`

func (r *Repository) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	var p Property
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, is_active FROM properties WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Code, &p.IsActive)
	if err != nil {
		return Property{}, lookupErr("property", id, err)
	}
	return p, nil
}

func (r *Repository) GetVendor(ctx context.Context, id uuid.UUID) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, is_active FROM vendors WHERE id=$1`, id).
		Scan(&v.ID, &v.Name, &v.Phone, &v.IsActive)
	if err != nil {
		return Vendor{}, lookupErr("vendor", id, err)
	}
	return v, nil
}

func (r *Repository) GetLinenItem(ctx context.Context, id uuid.UUID) (LinenItem, error) {
	var item LinenItem
	err := r.pool.QueryRow(ctx, `SELECT id, name, sku, is_active FROM linen_items WHERE id=$1`, id).
		Scan(&item.ID, &item.Name, &item.SKU, &item.IsActive)
	if err != nil {
		return LinenItem{}, lookupErr("linen item", id, err)
	}
	return item, nil
}

func (r *Repository) GetLocation(ctx context.Context, id uuid.UUID) (Location, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id=$1`, id)
	loc, err := scanLocation(row)
	if err != nil {
		return Location{}, lookupErr("location", id, err)
	}
	return loc, nil
}

func (r *Repository) FindVendorLocation(ctx context.Context, propertyID, vendorID uuid.UUID) (Location, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE property_id=$1 AND vendor_id=$2 AND kind='VENDOR'`, propertyID, vendorID)
	loc, err := scanLocation(row)
	if err != nil {
		return Location{}, lookupErr("vendor location", vendorID, err)
	}
	return loc, nil
}

func (r *Repository) ListLocations(ctx context.Context, propertyID uuid.UUID) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE property_id=$1 ORDER BY kind, name`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list locations: %v", shared.ErrStorage, err)
	}
	defer rows.Close()
	locations := []Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan location: %v", shared.ErrStorage, err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list locations: %v", shared.ErrStorage, err)
	}
	return locations, nil
}

func (r *Repository) ListActiveProperties(ctx context.Context) ([]Property, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code, is_active FROM properties WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("%w: list properties: %v", shared.ErrStorage, err)
	}
	props, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Property, error) {
		var p Property
		err := row.Scan(&p.ID, &p.Name, &p.Code, &p.IsActive)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan properties: %v", shared.ErrStorage, err)
	}
	return props, nil
}

func (r *Repository) ListActiveVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, is_active FROM vendors WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list vendors: %v", shared.ErrStorage, err)
	}
	vendors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Vendor, error) {
		var v Vendor
		err := row.Scan(&v.ID, &v.Name, &v.Phone, &v.IsActive)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan vendors: %v", shared.ErrStorage, err)
	}
	return vendors, nil
}

// InsertLocation creates loc. A unique violation on the natural key is reported as ErrConflict.
func (r *Repository) InsertLocation(ctx context.Context, loc Location) error {
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO locations (`+locationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		loc.ID, loc.PropertyID, loc.VendorID, string(loc.Kind), loc.Name, loc.IsActive, loc.CreatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("masters: location %s/%s: %w", loc.PropertyID, loc.Kind, shared.ErrConflict)
		}
		return fmt.Errorf("%w: insert location: %v", shared.ErrStorage, err)
	}
	return nil
}

const (
	lockLocationSQL = `SELECT is_active FROM locations WHERE id = $1 FOR UPDATE`

	countHeldStockSQL = `SELECT COUNT(*) FROM (
    SELECT 1 FROM ledger_entries
    WHERE location_id = $1
    GROUP BY linen_item_id, condition
    HAVING SUM(qty_delta) <> 0
) held`

	deactivateLocationSQL = `UPDATE locations SET is_active = false WHERE id = $1`
)

// DeactivateLocation marks a location inactive once every (item, condition) balance held
// there is zero, failing ErrStockBalance otherwise. Postings share-lock the location row
// for their whole transaction, so stock cannot land between the count and the update.
func (r *Repository) DeactivateLocation(ctx context.Context, id uuid.UUID) error {
	err := db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return deactivateLocked(ctx, tx, id)
	})
	if err == nil {
		return nil
	}
	for _, domain := range []error{shared.ErrNotFound, shared.ErrStockBalance, shared.ErrStorage} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: deactivate location: %v", shared.ErrStorage, err)
}

func deactivateLocked(ctx context.Context, q db.Querier, id uuid.UUID) error {
	var active bool
	if err := q.QueryRow(ctx, lockLocationSQL, id).Scan(&active); err != nil {
		return lookupErr("location", id, err)
	}
	if !active {
		return nil
	}
	var held int
	if err := q.QueryRow(ctx, countHeldStockSQL, id).Scan(&held); err != nil {
		return fmt.Errorf("%w: count stock: %v", shared.ErrStorage, err)
	}
	if held > 0 {
		return fmt.Errorf("%w: %d non-zero balance(s) at location %s", shared.ErrStockBalance, held, id)
	}
	if _, err := q.Exec(ctx, deactivateLocationSQL, id); err != nil {
		return fmt.Errorf("%w: deactivate location: %v", shared.ErrStorage, err)
	}
	return nil
}

func scanLocation(row pgx.Row) (Location, error) {
	var loc Location
	var kind string
	if err := row.Scan(&loc.ID, &loc.PropertyID, &loc.VendorID, &kind, &loc.Name, &loc.IsActive, &loc.CreatedAt); err != nil {
		return Location{}, err
	}
	loc.Kind = LocationKind(kind)
	return loc, nil
}

func lookupErr(entity string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("masters: %s %s: %w", entity, id, shared.ErrNotFound)
	}
	return fmt.Errorf("%w: load %s: %v", shared.ErrStorage, entity, err)
}
