// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "wardgate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where a GrantID is expected.
type (
	UserID     uuid.UUID
	RoleID     uuid.UUID
	GrantID    uuid.UUID
	ApprovalID uuid.UUID
)

// New functions - use when creating entities.

func NewUserID() UserID         { return UserID(uuid.New()) }
func NewRoleID() RoleID         { return RoleID(uuid.New()) }
func NewGrantID() GrantID       { return GrantID(uuid.New()) }
func NewApprovalID() ApprovalID { return ApprovalID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseRoleID(s string) (RoleID, error) {
	id, err := parseUUID(s, "role ID")
	return RoleID(id), err
}

func ParseGrantID(s string) (GrantID, error) {
	id, err := parseUUID(s, "grant ID")
	return GrantID(id), err
}

func ParseApprovalID(s string) (ApprovalID, error) {
	id, err := parseUUID(s, "approval ID")
	return ApprovalID(id), err
}

// String methods - for logging and debugging.

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id RoleID) String() string     { return uuid.UUID(id).String() }
func (id GrantID) String() string    { return uuid.UUID(id).String() }
func (id ApprovalID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ApprovalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here; use
// IsNil() at the service layer for business validation so store lookups can
// return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
