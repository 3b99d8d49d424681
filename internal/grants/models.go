package grants

import (
	"time"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
)

// Status is the lifecycle state of a temporary permission grant.
//
//	REQUESTED -> APPROVED -> ACTIVE -> EXPIRED
//	REQUESTED -> REJECTED            -> REVOKED
//
// EXPIRED, REVOKED, and REJECTED are terminal; a grant never re-enters
// ACTIVE once it has left it.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusRevoked   Status = "REVOKED"
)

// validTransitions is the closed set of allowed status moves. Every writer
// goes through Store.Transition which checks the current status first, so a
// losing racer (e.g. revoke vs expire) fails its precondition instead of
// corrupting state.
var validTransitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusActive},
	StatusActive:    {StatusExpired, StatusRevoked},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// Grant is a time-boxed, individually approved permission outside of role
// membership. Only counted in the effective set while ACTIVE and unexpired.
type Grant struct {
	ID              id.GrantID
	UserID          id.UserID
	Permission      catalog.Code
	Reason          string
	RequestedAt     time.Time
	ExpiresAt       time.Time
	Status          Status
	ApprovedBy      *id.UserID
	ApprovedAt      *time.Time
	RejectionReason string
	RevokedBy       *id.UserID
}

// ActiveAt reports whether the grant contributes to the effective set at the
// given instant. The expiry re-check here is what makes the sweeper a
// performance optimization rather than a consistency requirement: a grant
// past its expiry is never reported active even before the sweeper has
// persisted the EXPIRED transition.
func (g *Grant) ActiveAt(now time.Time) bool {
	return g.Status == StatusActive && now.Before(g.ExpiresAt)
}

// TransitionUpdate carries the fields a status transition may set.
type TransitionUpdate struct {
	ApprovedBy      *id.UserID
	ApprovedAt      *time.Time
	RejectionReason string
	RevokedBy       *id.UserID
}
