// Package access answers "who is calling" and "may they touch this property".
// Authentication itself happens upstream; this package only consumes its result.
package access

import (
	"slices"

	"github.com/google/uuid"
)

// Role groups the capabilities of an actor.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Actor describes the authenticated caller.
type Actor struct {
	ID          uuid.UUID
	Name        string
	Role        Role
	PropertyIDs []uuid.UUID
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasProperty reports whether propertyID is in the actor's scope. Admins see every property.
func (a Actor) HasProperty(propertyID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return slices.Contains(a.PropertyIDs, propertyID)
}
