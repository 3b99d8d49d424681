package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wardgate/internal/grants"
	"wardgate/internal/platform/metrics"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// GrantManager exposes the two operations a sweep pass needs.
type GrantManager interface {
	ListExpiredActive(ctx context.Context) ([]*grants.Grant, error)
	Expire(ctx context.Context, grantID id.GrantID) (*grants.Grant, error)
}

// Result summarizes a single sweep pass.
type Result struct {
	Expired int
	Skipped int
}

// Sweeper periodically transitions grants past their expiry to EXPIRED.
// It is a performance optimization: the resolver re-checks expiry itself,
// so a late sweep never leaks an expired grant into the effective set.
type Sweeper struct {
	manager  GrantManager
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables sweep metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = mx
	}
}

// New constructs a Sweeper with the required grant manager and options applied.
func New(manager GrantManager, opts ...Option) (*Sweeper, error) {
	if manager == nil {
		return nil, fmt.Errorf("grant manager is required")
	}
	s := &Sweeper{
		manager:  manager,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start runs sweep passes periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
				if s.metrics != nil {
					s.metrics.IncrementSweepFailures()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep pass. A grant that lost an InvalidTransition
// race (concurrent revoke, or a second sweeper already expired it) is counted
// as skipped and logged, never surfaced as an error; that makes RunOnce safe
// to run concurrently with itself and with administrator revokes.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	stale, err := s.manager.ListExpiredActive(ctx)
	if err != nil {
		return res, fmt.Errorf("list expired grants: %w", err)
	}
	for _, g := range stale {
		if _, err := s.manager.Expire(ctx, g.ID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidTransition) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				res.Skipped++
				s.logger.DebugContext(ctx, "grant already transitioned, skipping",
					"grant_id", g.ID.String(),
				)
				continue
			}
			return res, fmt.Errorf("expire grant %s: %w", g.ID, err)
		}
		res.Expired++
	}
	if s.metrics != nil {
		s.metrics.IncrementSweepRuns()
		if res.Expired > 0 {
			s.metrics.IncrementGrantsExpired(res.Expired)
		}
	}
	if res.Expired > 0 || res.Skipped > 0 {
		s.logger.InfoContext(ctx, "expiry sweep complete",
			"expired", res.Expired,
			"skipped", res.Skipped,
		)
	}
	return res, nil
}
