package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Repository loads actors from the users tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindActor loads an active user together with its property scope.
func (r *Repository) FindActor(ctx context.Context, id uuid.UUID) (Actor, error) {
	var actor Actor
	var role string
	err := r.pool.QueryRow(ctx, `SELECT id, name, role FROM users WHERE id=$1 AND is_active`, id).Scan(&actor.ID, &actor.Name, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, fmt.Errorf("access: user %s: %w", id, shared.ErrNotFound)
		}
		return Actor{}, fmt.Errorf("%w: load user: %v", shared.ErrStorage, err)
	}
	actor.Role = Role(role)
	rows, err := r.pool.Query(ctx, `SELECT property_id FROM user_properties WHERE user_id=$1 ORDER BY property_id`, id)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: load user properties: %v", shared.ErrStorage, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return Actor{}, fmt.Errorf("%w: scan user properties: %v", shared.ErrStorage, err)
	}
	actor.PropertyIDs = ids
	return actor, nil
}
