package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// Checker is the capability collaborator injected into services.
type Checker interface {
	RequireUser(ctx context.Context) (Actor, error)
	RequireRole(actor Actor, roles ...Role) error
	RequirePropertyAccess(actor Actor, propertyID uuid.UUID) error
}

// Policy is the default Checker. It reads the actor placed in the context by Middleware.
type Policy struct{}

// RequireUser returns the authenticated actor or ErrAuthorization.
func (Policy) RequireUser(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == uuid.Nil {
		return Actor{}, fmt.Errorf("%w: no authenticated user", shared.ErrAuthorization)
	}
	return actor, nil
}

// RequireRole implements Checker.
func (Policy) RequireRole(actor Actor, roles ...Role) error {
	return RequireRole(actor, roles...)
}

// RequirePropertyAccess implements Checker.
func (Policy) RequirePropertyAccess(actor Actor, propertyID uuid.UUID) error {
	return RequirePropertyAccess(actor, propertyID)
}

// RequireRole fails unless the actor holds one of roles.
func RequireRole(actor Actor, roles ...Role) error {
	if len(roles) == 0 || slices.Contains(roles, actor.Role) {
		return nil
	}
	return fmt.Errorf("%w: role %s not permitted", shared.ErrAuthorization, actor.Role)
}

// RequirePropertyAccess fails unless propertyID is in the actor's scope.
func RequirePropertyAccess(actor Actor, propertyID uuid.UUID) error {
	if propertyID == uuid.Nil {
		return fmt.Errorf("%w: property required", shared.ErrValidation)
	}
	if actor.HasProperty(propertyID) {
		return nil
	}
	return fmt.Errorf("%w: property %s outside actor scope", shared.ErrAuthorization, propertyID)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
