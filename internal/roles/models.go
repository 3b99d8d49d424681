package roles

import (
	"time"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
)

// Role is a named bundle of permission codes assignable to users.
// Inactive roles stay assigned but contribute nothing to the effective
// set, so a role can be soft-disabled without reassigning users.
type Role struct {
	ID          id.RoleID
	Code        string
	Name        string
	Permissions catalog.Set
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment links a user to a role. Assignments are idempotent: assigning
// an already-held role is a no-op, not an error.
type Assignment struct {
	UserID     id.UserID
	RoleID     id.RoleID
	AssignedAt time.Time
}
