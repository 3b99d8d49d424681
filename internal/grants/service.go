package grants

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wardgate/internal/catalog"
	"wardgate/internal/platform/metrics"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
	"wardgate/pkg/sentinel"
)

// Store defines the persistence interface for temporary grants.
// Error Contract:
// - Find returns sentinel.ErrNotFound (wrapped) when the grant doesn't exist.
// - Transition returns sentinel.ErrInvalidState (wrapped) when the grant is
//   not in the expected from-status; the check and the write are atomic per
//   grant so concurrent writers serialize.
// - Transition returns sentinel.ErrConflict (wrapped) when activating would
//   create a second ACTIVE grant for the same (user, permission) pair; the
//   uniqueness check is atomic with the write.
type Store interface {
	Save(ctx context.Context, grant *Grant) error
	Find(ctx context.Context, grantID id.GrantID) (*Grant, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Grant, error)
	ListActiveByUser(ctx context.Context, userID id.UserID) ([]*Grant, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]*Grant, error)
	ListSince(ctx context.Context, since time.Time) ([]*Grant, error)
	Transition(ctx context.Context, grantID id.GrantID, from, to Status, update TransitionUpdate) (*Grant, error)
}

// Workflow receives newly requested grants for approval routing. Implemented
// by the approval engine; kept as an interface here so the grant manager has
// no dependency on routing policy.
type Workflow interface {
	Enqueue(ctx context.Context, grant *Grant) (id.ApprovalID, error)
}

// Manager owns the grant lifecycle. It is the only writer of grant state;
// the resolver reads through ListActivePermissions and never mutates.
type Manager struct {
	store    Store
	catalog  *catalog.Catalog
	workflow Workflow
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables grant lifecycle metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a grant manager over the given store and catalog.
func NewManager(store Store, cat *catalog.Catalog, opts ...Option) (*Manager, error) {
	if store == nil || cat == nil {
		return nil, errors.New("store and catalog are required")
	}
	m := &Manager{
		store:   store,
		catalog: cat,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AttachWorkflow wires the approval engine after construction. The engine
// needs the manager for its activation callback, so the two are linked in
// main rather than through constructors.
func (m *Manager) AttachWorkflow(w Workflow) {
	m.workflow = w
}

// RequestGrant creates a grant in REQUESTED state and enqueues it with the
// approval workflow. Duplicate detection applies to ACTIVE grants only:
// several REQUESTED grants for the same (user, permission) may coexist,
// each pending its own approval.
func (m *Manager) RequestGrant(ctx context.Context, userID id.UserID, permission catalog.Code, reason string, expiresAt time.Time) (*Grant, error) {
	if !m.catalog.Exists(permission) {
		return nil, dErrors.New(dErrors.CodeUnknownPermission, "permission not in catalog: "+string(permission))
	}
	now := m.now()
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidExpiry, "expiry must be in the future")
	}
	active, err := m.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active grants")
	}
	for _, g := range active {
		if g.Permission == permission && g.ActiveAt(now) {
			return nil, dErrors.New(dErrors.CodeDuplicateActiveGrant, "an active grant for this permission already exists")
		}
	}

	grant := &Grant{
		ID:          id.NewGrantID(),
		UserID:      userID,
		Permission:  permission,
		Reason:      reason,
		RequestedAt: now,
		ExpiresAt:   expiresAt,
		Status:      StatusRequested,
	}
	if err := m.store.Save(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save grant")
	}
	if m.metrics != nil {
		m.metrics.IncrementGrantsRequested()
	}
	m.logger.InfoContext(ctx, "grant requested",
		"grant_id", grant.ID.String(),
		"user_id", userID.String(),
		"permission", string(permission),
		"expires_at", expiresAt,
	)

	if m.workflow != nil {
		if _, err := m.workflow.Enqueue(ctx, grant); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue approval request")
		}
	}
	return grant, nil
}

// MarkApproved records the approval event: REQUESTED -> APPROVED. Invoked
// only by the workflow engine, which immediately follows with Activate; the
// two transitions are distinct so audit can show the approval separately
// from the activation instant.
func (m *Manager) MarkApproved(ctx context.Context, grantID id.GrantID, approvedBy id.UserID) (*Grant, error) {
	at := m.now()
	grant, err := m.store.Transition(ctx, grantID, StatusRequested, StatusApproved, TransitionUpdate{
		ApprovedBy: &approvedBy,
		ApprovedAt: &at,
	})
	if err != nil {
		return nil, m.translateTransitionErr(err, "grant is not awaiting approval")
	}
	m.logger.InfoContext(ctx, "grant approved",
		"grant_id", grantID.String(),
		"approved_by", approvedBy.String(),
	)
	return grant, nil
}

// MarkRejected records a terminal rejection: REQUESTED -> REJECTED.
func (m *Manager) MarkRejected(ctx context.Context, grantID id.GrantID, rejectionReason string) (*Grant, error) {
	grant, err := m.store.Transition(ctx, grantID, StatusRequested, StatusRejected, TransitionUpdate{
		RejectionReason: rejectionReason,
	})
	if err != nil {
		return nil, m.translateTransitionErr(err, "grant is not awaiting approval")
	}
	m.logger.InfoContext(ctx, "grant rejected",
		"grant_id", grantID.String(),
		"reason", rejectionReason,
	)
	return grant, nil
}

// Activate transitions APPROVED -> ACTIVE. Invoked only by the workflow
// engine after it has claimed resolution, so a grant activates exactly once.
// The store enforces at most one ACTIVE grant per (user, permission) at the
// transition itself: when duplicate REQUESTED grants are both approved, the
// second activation fails and the grant stays APPROVED.
func (m *Manager) Activate(ctx context.Context, grantID id.GrantID) (*Grant, error) {
	grant, err := m.store.Transition(ctx, grantID, StatusApproved, StatusActive, TransitionUpdate{})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateActiveGrant, "an active grant for this permission already exists")
		}
		return nil, m.translateTransitionErr(err, "grant is not approved")
	}
	if m.metrics != nil {
		m.metrics.IncrementGrantsActivated()
	}
	m.logger.InfoContext(ctx, "grant activated", "grant_id", grantID.String())
	return grant, nil
}

// Revoke is the administrator action: ACTIVE -> REVOKED. A revoke that
// loses the race against the expiry sweeper fails with InvalidTransition,
// which the caller treats as a benign no-op.
func (m *Manager) Revoke(ctx context.Context, grantID id.GrantID, revokedBy id.UserID) (*Grant, error) {
	grant, err := m.store.Transition(ctx, grantID, StatusActive, StatusRevoked, TransitionUpdate{
		RevokedBy: &revokedBy,
	})
	if err != nil {
		return nil, m.translateTransitionErr(err, "grant is not active")
	}
	if m.metrics != nil {
		m.metrics.IncrementGrantsRevoked()
	}
	m.logger.InfoContext(ctx, "grant revoked",
		"grant_id", grantID.String(),
		"revoked_by", revokedBy.String(),
	)
	return grant, nil
}

// Expire transitions ACTIVE -> EXPIRED. Invoked only by the expiry sweeper.
func (m *Manager) Expire(ctx context.Context, grantID id.GrantID) (*Grant, error) {
	grant, err := m.store.Transition(ctx, grantID, StatusActive, StatusExpired, TransitionUpdate{})
	if err != nil {
		return nil, m.translateTransitionErr(err, "grant is not active")
	}
	return grant, nil
}

// GetGrant returns the grant by ID.
func (m *Manager) GetGrant(ctx context.Context, grantID id.GrantID) (*Grant, error) {
	grant, err := m.store.Find(ctx, grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant")
	}
	return grant, nil
}

// ListGrants returns all of the user's grants, any status.
func (m *Manager) ListGrants(ctx context.Context, userID id.UserID) ([]*Grant, error) {
	out, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}
	return out, nil
}

// ListActivePermissions is the one query the resolver needs. It excludes
// anything not strictly ACTIVE with time remaining, re-checking expiry
// itself rather than trusting the sweeper to have already run.
func (m *Manager) ListActivePermissions(ctx context.Context, userID id.UserID) (catalog.Set, error) {
	active, err := m.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active grants")
	}
	now := m.now()
	set := catalog.NewSet()
	for _, g := range active {
		if g.ActiveAt(now) {
			set.Add(g.Permission)
		}
	}
	return set, nil
}

// History returns every grant requested at or after since, newest first.
// Used by analytics.
func (m *Manager) History(ctx context.Context, since time.Time) ([]*Grant, error) {
	out, err := m.store.ListSince(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grant history")
	}
	return out, nil
}

// ListExpiredActive returns grants still marked ACTIVE whose expiry has
// passed. Used by the sweeper.
func (m *Manager) ListExpiredActive(ctx context.Context) ([]*Grant, error) {
	out, err := m.store.ListExpiredActive(ctx, m.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired grants")
	}
	return out, nil
}

func (m *Manager) translateTransitionErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "grant not found")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeInvalidTransition, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "grant transition failed")
}
