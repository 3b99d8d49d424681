package approval

import (
	"time"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
)

// Decision is a single approver's verdict on a step.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// State is the lifecycle of an approval request: PENDING until every
// required step has a decision (or the first rejection), then terminal.
type State string

const (
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
)

// Terminal reports whether the request admits no further decisions.
func (s State) Terminal() bool { return s != StatePending }

// StepDecision records one approver's decision on one step.
type StepDecision struct {
	ApproverID id.UserID
	Decision   Decision
	Timestamp  time.Time
	Notes      string
}

// Request wraps a grant with its routing: the ordered list of approval
// steps and the decisions recorded so far. Steps are named by the
// permission code an approver must hold to decide them.
type Request struct {
	ID                id.ApprovalID
	GrantID           id.GrantID
	RequesterID       id.UserID
	Permission        catalog.Code
	RequiredApprovers []catalog.Code
	Decisions         []StepDecision
	State             State
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// NextStep returns the permission code required of the next approver, or
// false when every step already has a decision.
func (r *Request) NextStep() (catalog.Code, bool) {
	if len(r.Decisions) >= len(r.RequiredApprovers) {
		return "", false
	}
	return r.RequiredApprovers[len(r.Decisions)], true
}

// HasDecided reports whether the approver already decided an earlier step.
// Multi-step routes require independent approvers.
func (r *Request) HasDecided(approverID id.UserID) bool {
	for _, d := range r.Decisions {
		if d.ApproverID == approverID {
			return true
		}
	}
	return false
}
