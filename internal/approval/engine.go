package approval

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks GrantLifecycle,ApproverAuthority

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	"wardgate/internal/platform/metrics"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
	"wardgate/pkg/sentinel"
)

// Store defines the persistence interface for approval requests.
// Error Contract:
// - Find methods return sentinel.ErrNotFound (wrapped) when absent.
// - Apply runs the mutation atomically per request: the read, the closure,
//   and the write are a single critical section, which is what prevents two
//   approvers from both resolving the final step.
type Store interface {
	Save(ctx context.Context, req *Request) error
	Find(ctx context.Context, requestID id.ApprovalID) (*Request, error)
	FindByGrant(ctx context.Context, grantID id.GrantID) (*Request, error)
	ListPending(ctx context.Context) ([]*Request, error)
	Apply(ctx context.Context, requestID id.ApprovalID, apply func(*Request) error) (*Request, error)
}

// GrantLifecycle is the slice of the grant manager the engine calls back
// into once a request resolves.
type GrantLifecycle interface {
	MarkApproved(ctx context.Context, grantID id.GrantID, approvedBy id.UserID) (*grants.Grant, error)
	MarkRejected(ctx context.Context, grantID id.GrantID, rejectionReason string) (*grants.Grant, error)
	Activate(ctx context.Context, grantID id.GrantID) (*grants.Grant, error)
}

// ApproverAuthority answers whether a user may decide a step requiring the
// given permission code. Wired to the authorization resolver in main so
// approval checks follow the same effective-set rules as everything else.
type ApproverAuthority interface {
	HoldsPermission(ctx context.Context, userID id.UserID, code catalog.Code) (bool, error)
}

// Engine routes grant requests through their approval steps and records
// decisions. State per request moves PENDING -> (APPROVED | REJECTED),
// terminal; the first rejection short-circuits the whole request.
type Engine struct {
	store     Store
	lifecycle GrantLifecycle
	authority ApproverAuthority
	catalog   *catalog.Catalog
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables approval decision metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = mx
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs the approval workflow engine.
func NewEngine(store Store, lifecycle GrantLifecycle, authority ApproverAuthority, cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	if store == nil || lifecycle == nil || authority == nil || cat == nil {
		return nil, errors.New("store, lifecycle, authority, and catalog are required")
	}
	e := &Engine{
		store:     store,
		lifecycle: lifecycle,
		authority: authority,
		catalog:   cat,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// routeFor derives the required approver steps from the sensitivity of the
// requested permission. LOW and MEDIUM risk need a single holder of
// manage_permissions; HIGH and CRITICAL need two independent holders,
// deciding sequentially.
func (e *Engine) routeFor(permission catalog.Code) []catalog.Code {
	const gatekeeper = catalog.Code("manage_permissions")
	switch e.catalog.Sensitivity(permission) {
	case catalog.SensitivityHigh, catalog.SensitivityCritical:
		return []catalog.Code{gatekeeper, gatekeeper}
	default:
		return []catalog.Code{gatekeeper}
	}
}

// Enqueue creates a PENDING approval request for a freshly requested grant.
// Implements grants.Workflow.
func (e *Engine) Enqueue(ctx context.Context, grant *grants.Grant) (id.ApprovalID, error) {
	req := &Request{
		ID:                id.NewApprovalID(),
		GrantID:           grant.ID,
		RequesterID:       grant.UserID,
		Permission:        grant.Permission,
		RequiredApprovers: e.routeFor(grant.Permission),
		State:             StatePending,
		CreatedAt:         e.now(),
	}
	if err := e.store.Save(ctx, req); err != nil {
		return id.ApprovalID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save approval request")
	}
	e.logger.InfoContext(ctx, "approval request enqueued",
		"approval_id", req.ID.String(),
		"grant_id", grant.ID.String(),
		"permission", string(grant.Permission),
		"required_steps", len(req.RequiredApprovers),
	)
	return req.ID, nil
}

// RecordDecision applies one approver's decision to the request. The
// mutation runs inside Store.Apply, so checking the state, appending the
// decision, and claiming resolution are atomic: of two approvers racing on
// the final step, exactly one sees the claim succeed and performs the grant
// callbacks; the other gets AlreadyResolved.
func (e *Engine) RecordDecision(ctx context.Context, requestID id.ApprovalID, approverID id.UserID, decision Decision, notes string) (*Request, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "decision must be APPROVE or REJECT")
	}

	var resolved State
	req, err := e.store.Apply(ctx, requestID, func(r *Request) error {
		if r.State.Terminal() {
			return dErrors.New(dErrors.CodeAlreadyResolved, "approval request already resolved")
		}
		step, ok := r.NextStep()
		if !ok {
			return dErrors.New(dErrors.CodeAlreadyResolved, "approval request already resolved")
		}
		holds, err := e.authority.HoldsPermission(ctx, approverID, step)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check approver authority")
		}
		if !holds {
			return dErrors.New(dErrors.CodeNotAuthorizedApprover, "approver does not hold "+string(step))
		}
		if r.HasDecided(approverID) {
			return dErrors.New(dErrors.CodeNotAuthorizedApprover, "approver already decided an earlier step")
		}
		if r.RequesterID == approverID {
			return dErrors.New(dErrors.CodeNotAuthorizedApprover, "requesters cannot approve their own grants")
		}

		r.Decisions = append(r.Decisions, StepDecision{
			ApproverID: approverID,
			Decision:   decision,
			Timestamp:  e.now(),
			Notes:      notes,
		})
		switch {
		case decision == DecisionReject:
			r.State = StateRejected
		case len(r.Decisions) == len(r.RequiredApprovers):
			r.State = StateApproved
		default:
			return nil // more steps remain
		}
		at := e.now()
		r.ResolvedAt = &at
		resolved = r.State
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval request not found")
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.IncrementApprovalDecisions(string(decision))
	}
	e.logger.InfoContext(ctx, "approval decision recorded",
		"approval_id", requestID.String(),
		"approver_id", approverID.String(),
		"decision", string(decision),
		"state", string(req.State),
	)

	// Callbacks run outside the critical section; only the goroutine whose
	// Apply flipped the state to terminal reaches this point with resolved set.
	switch resolved {
	case StateRejected:
		if _, err := e.lifecycle.MarkRejected(ctx, req.GrantID, notes); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reject grant")
		}
	case StateApproved:
		if _, err := e.lifecycle.MarkApproved(ctx, req.GrantID, approverID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve grant")
		}
		if _, err := e.lifecycle.Activate(ctx, req.GrantID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate grant")
		}
	}
	return req, nil
}

// Get returns the approval request by ID.
func (e *Engine) Get(ctx context.Context, requestID id.ApprovalID) (*Request, error) {
	req, err := e.store.Find(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval request")
	}
	return req, nil
}

// GetByGrant returns the approval request wrapping the given grant.
func (e *Engine) GetByGrant(ctx context.Context, grantID id.GrantID) (*Request, error) {
	req, err := e.store.FindByGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval request")
	}
	return req, nil
}

// ListPending returns all unresolved approval requests, oldest first.
func (e *Engine) ListPending(ctx context.Context) ([]*Request, error) {
	out, err := e.store.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending approvals")
	}
	return out, nil
}
