package auth

import (
	"context"

	id "wardgate/pkg/domain"
)

// Store defines the persistence interface for users.
// Error Contract:
// - Find methods return sentinel.ErrNotFound (wrapped) when absent.
// - SaveUser returns sentinel.ErrConflict (wrapped) on a duplicate username.
type Store interface {
	SaveUser(ctx context.Context, user *User) error
	FindUser(ctx context.Context, userID id.UserID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}
