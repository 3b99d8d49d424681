package auth

import (
	"time"

	id "wardgate/pkg/domain"
)

// User is an authenticated staff member. Role membership lives in the role
// store; IsAdmin is the global override flag, deliberately not a role.
type User struct {
	ID           id.UserID
	Username     string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}
