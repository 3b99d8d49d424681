package resolver

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"wardgate/internal/audit"
	"wardgate/internal/catalog"
	"wardgate/internal/platform/metrics"
	"wardgate/internal/resolver/tracer"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// RoleSource yields the permissions a user holds through active role
// assignments.
type RoleSource interface {
	EffectivePermissions(ctx context.Context, userID id.UserID) (catalog.Set, error)
}

// GrantSource yields the permissions a user holds through ACTIVE, unexpired
// temporary grants.
type GrantSource interface {
	ListActivePermissions(ctx context.Context, userID id.UserID) (catalog.Set, error)
}

// AdminSource reports whether a user carries the administrator override.
type AdminSource interface {
	IsAdmin(ctx context.Context, userID id.UserID) (bool, error)
}

// Emitter receives one audit entry per authorization check.
type Emitter interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Effective is a user's resolved permission set with per-permission
// provenance. For administrators the set is the whole catalog and every
// source is ADMIN.
type Effective struct {
	Permissions catalog.Set
	Sources     map[catalog.Code]audit.Source
	Admin       bool
}

// SourceOf returns the provenance of a permission in the effective set, or
// SourceNone when the set does not contain it.
func (e *Effective) SourceOf(code catalog.Code) audit.Source {
	if src, ok := e.Sources[code]; ok {
		return src
	}
	return audit.SourceNone
}

// Service resolves effective permissions and answers authorization checks.
// Unknown permission codes and source failures both deny: the resolver never
// guesses in favor of access.
type Service struct {
	roles   RoleSource
	grants  GrantSource
	admins  AdminSource
	catalog *catalog.Catalog
	emitter Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables check metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = mx
	}
}

// WithTracer overrides the default no-op tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithEmitter wires the audit sink. Without one, checks still resolve but
// leave no audit trail.
func WithEmitter(emitter Emitter) Option {
	return func(s *Service) {
		s.emitter = emitter
	}
}

// NewService constructs the authorization resolver.
func NewService(roleSrc RoleSource, grantSrc GrantSource, adminSrc AdminSource, cat *catalog.Catalog, opts ...Option) (*Service, error) {
	if roleSrc == nil || grantSrc == nil || adminSrc == nil || cat == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "role source, grant source, admin source, and catalog are required")
	}
	s := &Service{
		roles:   roleSrc,
		grants:  grantSrc,
		admins:  adminSrc,
		catalog: cat,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sourceFetchResult holds results from the parallel source fetches. Each
// goroutine writes to its own field, avoiding data races.
type sourceFetchResult struct {
	rolePerms  catalog.Set
	grantPerms catalog.Set
	admin      bool
}

// Resolve computes the user's effective permission set: role permissions,
// ACTIVE grant permissions, and the administrator override, fetched in
// parallel with shared cancellation. Any source failure fails the whole
// resolution; callers deny on error.
func (s *Service) Resolve(ctx context.Context, userID id.UserID) (*Effective, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanResolve,
		tracer.String(tracer.AttrUserID, userID.String()),
	)
	var resolveErr error
	defer func() { span.End(resolveErr) }()

	g, gctx := errgroup.WithContext(ctx)
	var result sourceFetchResult

	g.Go(func() error {
		perms, err := s.roles.EffectivePermissions(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load role permissions")
		}
		result.rolePerms = perms
		return nil
	})
	g.Go(func() error {
		perms, err := s.grants.ListActivePermissions(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant permissions")
		}
		result.grantPerms = perms
		return nil
	})
	g.Go(func() error {
		admin, err := s.admins.IsAdmin(gctx, userID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check admin override")
		}
		result.admin = admin
		return nil
	})
	if err := g.Wait(); err != nil {
		resolveErr = err
		return nil, err
	}

	eff := &Effective{
		Permissions: catalog.NewSet(),
		Sources:     make(map[catalog.Code]audit.Source),
		Admin:       result.admin,
	}
	if result.admin {
		// Administrators hold every registered permission. ADMIN wins over
		// any role or grant provenance.
		for _, code := range s.catalog.All() {
			eff.Permissions.Add(code)
			eff.Sources[code] = audit.SourceAdmin
		}
		span.SetAttributes(
			tracer.Bool(tracer.AttrAdmin, true),
			tracer.Int64(tracer.AttrSetSize, int64(len(eff.Sources))),
		)
		return eff, nil
	}
	for code := range result.grantPerms {
		eff.Permissions.Add(code)
		eff.Sources[code] = audit.SourceTemporary
	}
	// Role provenance wins over temporary when both apply.
	for code := range result.rolePerms {
		eff.Permissions.Add(code)
		eff.Sources[code] = audit.SourceRole
	}
	span.SetAttributes(tracer.Int64(tracer.AttrSetSize, int64(len(eff.Sources))))
	return eff, nil
}

// Has answers a single authorization check, emitting an audit entry either
// way. Unknown permission codes deny, administrator or not.
func (s *Service) Has(ctx context.Context, userID id.UserID, code catalog.Code) (bool, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanCheck,
		tracer.String(tracer.AttrUserID, userID.String()),
		tracer.String(tracer.AttrPermission, string(code)),
	)
	var checkErr error
	defer func() { span.End(checkErr) }()

	if !s.catalog.Exists(code) {
		s.record(ctx, userID, code, false, audit.SourceNone, start)
		span.SetAttributes(tracer.Bool(tracer.AttrGranted, false))
		return false, nil
	}
	eff, err := s.Resolve(ctx, userID)
	if err != nil {
		checkErr = err
		return false, err
	}
	granted := eff.Permissions.Has(code)
	source := eff.SourceOf(code)
	s.record(ctx, userID, code, granted, source, start)
	span.SetAttributes(
		tracer.Bool(tracer.AttrGranted, granted),
		tracer.String(tracer.AttrSource, string(source)),
	)
	return granted, nil
}

// HasAny reports whether the user holds at least one of the codes. One audit
// entry is emitted per code checked; checking stops at the first hit.
func (s *Service) HasAny(ctx context.Context, userID id.UserID, codes ...catalog.Code) (bool, error) {
	eff, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	start := time.Now()
	for _, code := range codes {
		granted := s.catalog.Exists(code) && eff.Permissions.Has(code)
		s.record(ctx, userID, code, granted, eff.SourceOf(code), start)
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the user holds every one of the codes. All codes
// are checked and audited even after the first miss.
func (s *Service) HasAll(ctx context.Context, userID id.UserID, codes ...catalog.Code) (bool, error) {
	eff, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	start := time.Now()
	all := len(codes) > 0
	for _, code := range codes {
		granted := s.catalog.Exists(code) && eff.Permissions.Has(code)
		s.record(ctx, userID, code, granted, eff.SourceOf(code), start)
		if !granted {
			all = false
		}
	}
	return all, nil
}

// HoldsPermission adapts Has for approval-step authority checks, so approver
// eligibility follows the same effective-set rules as every other check.
func (s *Service) HoldsPermission(ctx context.Context, userID id.UserID, code catalog.Code) (bool, error) {
	return s.Has(ctx, userID, code)
}

func (s *Service) record(ctx context.Context, userID id.UserID, code catalog.Code, granted bool, source audit.Source, start time.Time) {
	if s.metrics != nil {
		if granted {
			s.metrics.IncrementChecksAllowed(string(source))
		} else {
			s.metrics.IncrementChecksDenied()
		}
		s.metrics.ObserveCheckLatency(time.Since(start).Seconds())
	}
	if s.emitter == nil {
		return
	}
	err := s.emitter.Emit(ctx, audit.Entry{
		UserID:     userID,
		Permission: code,
		Granted:    granted,
		Source:     source,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit entry",
			"error", err,
			"user_id", userID.String(),
			"permission", string(code),
		)
	}
}
