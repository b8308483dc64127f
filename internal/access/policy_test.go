package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

func TestRequireRole(t *testing.T) {
	staff := Actor{ID: uuid.New(), Role: RoleStaff}
	admin := Actor{ID: uuid.New(), Role: RoleAdmin}

	require.NoError(t, RequireRole(admin, RoleAdmin))
	require.NoError(t, RequireRole(staff, RoleAdmin, RoleManager, RoleStaff))
	require.NoError(t, RequireRole(staff))
	require.ErrorIs(t, RequireRole(staff, RoleAdmin), shared.ErrAuthorization)
}

func TestRequirePropertyAccess(t *testing.T) {
	scoped := uuid.New()
	other := uuid.New()
	manager := Actor{ID: uuid.New(), Role: RoleManager, PropertyIDs: []uuid.UUID{scoped}}
	admin := Actor{ID: uuid.New(), Role: RoleAdmin}

	require.NoError(t, RequirePropertyAccess(manager, scoped))
	require.ErrorIs(t, RequirePropertyAccess(manager, other), shared.ErrAuthorization)
	require.NoError(t, RequirePropertyAccess(admin, other))
	require.ErrorIs(t, RequirePropertyAccess(admin, uuid.Nil), shared.ErrValidation)
}

func TestPolicyRequireUser(t *testing.T) {
	_, err := Policy{}.RequireUser(context.Background())
	require.ErrorIs(t, err, shared.ErrAuthorization)

	want := Actor{ID: uuid.New(), Role: RoleStaff}
	got, err := Policy{}.RequireUser(ContextWithActor(context.Background(), want))
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
}

func TestRoleIsValid(t *testing.T) {
	require.True(t, RoleManager.IsValid())
	require.False(t, Role("GUEST").IsValid())
}
