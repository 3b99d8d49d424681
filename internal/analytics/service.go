package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"wardgate/internal/audit"
	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	"wardgate/internal/roles"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// AuditSource reads the check history the resolver wrote.
type AuditSource interface {
	ListSince(ctx context.Context, since time.Time) ([]audit.Entry, error)
}

// GrantHistory reads temporary grant requests across all users.
type GrantHistory interface {
	History(ctx context.Context, since time.Time) ([]*grants.Grant, error)
}

// RoleCoverage reads role definitions, used to spot permissions held broadly
// but rarely exercised.
type RoleCoverage interface {
	ListRoles(ctx context.Context) ([]*roles.Role, error)
}

// Risk scoring weights. The score blends how sensitive a permission is, how
// often it gets requested as a temporary grant, and how much of its granted
// usage bypasses the role model.
const (
	sensitivityWeight    = 2.5
	grantFrequencyWeight = 0.4
	grantFrequencyCap    = 10
	temporaryShareWeight = 4.0

	promoteThreshold = 3 // temporary requests in window before suggesting a role change
)

// Service computes usage and risk reports from audit and grant history.
// Reports are read-only: nothing here mutates roles or grants.
type Service struct {
	audits  AuditSource
	history GrantHistory
	roles   RoleCoverage
	catalog *catalog.Catalog
	logger  *slog.Logger
	window  time.Duration
	now     func() time.Time
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

// WithWindow overrides the reporting window when greater than zero.
func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the analytics service. The default window is 30 days.
func NewService(audits AuditSource, history GrantHistory, roleCov RoleCoverage, cat *catalog.Catalog, opts ...Option) (*Service, error) {
	if audits == nil || history == nil || roleCov == nil || cat == nil {
		return nil, fmt.Errorf("audit source, grant history, role coverage, and catalog are required")
	}
	s := &Service{
		audits:  audits,
		history: history,
		roles:   roleCov,
		catalog: cat,
		logger:  slog.Default(),
		window:  30 * 24 * time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type permissionStats struct {
	usage         PermissionUsage
	users         map[id.UserID]struct{}
	grantRequests int
}

// Report aggregates the window's audit entries and grant requests into the
// full analytics payload. Everything is computed from recorded history;
// permissions with no activity in the window appear only through the role
// coverage suggestions.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	now := s.now()
	since := now.Add(-s.window)

	entries, err := s.audits.ListSince(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit history")
	}
	requested, err := s.history.History(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant history")
	}
	roleList, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}

	stats := make(map[catalog.Code]*permissionStats)
	statsFor := func(code catalog.Code) *permissionStats {
		st, ok := stats[code]
		if !ok {
			st = &permissionStats{
				usage: PermissionUsage{Permission: code},
				users: make(map[id.UserID]struct{}),
			}
			stats[code] = st
		}
		return st
	}

	summary := Summary{WindowStart: since, GeneratedAt: now}
	for _, e := range entries {
		st := statsFor(e.Permission)
		st.usage.Checks++
		st.users[e.UserID] = struct{}{}
		summary.TotalChecks++
		if !e.Granted {
			st.usage.Denied++
			summary.TotalDenied++
			continue
		}
		st.usage.Granted++
		summary.TotalGranted++
		switch e.Source {
		case audit.SourceRole:
			st.usage.ByRole++
		case audit.SourceTemporary:
			st.usage.ByTemporary++
		case audit.SourceAdmin:
			st.usage.ByAdmin++
		}
	}
	for _, g := range requested {
		statsFor(g.Permission).grantRequests++
		summary.GrantRequests++
	}
	summary.PermissionsTracked = len(stats)

	report := &Report{Summary: summary}
	for _, st := range stats {
		st.usage.UniqueUsers = len(st.users)
		report.PermissionUsage = append(report.PermissionUsage, st.usage)
		report.RiskAssessment = append(report.RiskAssessment, s.assess(st))
	}
	sort.Slice(report.PermissionUsage, func(i, j int) bool {
		return report.PermissionUsage[i].Permission < report.PermissionUsage[j].Permission
	})
	sort.Slice(report.RiskAssessment, func(i, j int) bool {
		a, b := report.RiskAssessment[i], report.RiskAssessment[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Permission < b.Permission
	})
	report.OptimizationSuggestions = s.suggest(stats, roleList)
	return report, nil
}

// assess blends sensitivity, grant request frequency, and the share of
// granted usage that came through temporary grants instead of roles.
func (s *Service) assess(st *permissionStats) RiskAssessment {
	sensitivity := s.catalog.Sensitivity(st.usage.Permission)

	freq := st.grantRequests
	if freq > grantFrequencyCap {
		freq = grantFrequencyCap
	}
	var share float64
	if st.usage.Granted > 0 {
		share = float64(st.usage.ByTemporary) / float64(st.usage.Granted)
	}
	score := float64(sensitivity.Weight())*sensitivityWeight +
		float64(freq)*grantFrequencyWeight +
		share*temporaryShareWeight

	tier := TierLow
	switch {
	case score >= 12:
		tier = TierCritical
	case score >= 8:
		tier = TierHigh
	case score >= 4:
		tier = TierMedium
	}
	return RiskAssessment{
		Permission:     st.usage.Permission,
		Sensitivity:    sensitivity,
		Score:          score,
		Tier:           tier,
		GrantRequests:  st.grantRequests,
		TemporaryShare: share,
	}
}

// suggest flags permissions requested temporarily often enough to belong in
// a role, and role permissions that saw no use at all in the window.
func (s *Service) suggest(stats map[catalog.Code]*permissionStats, roleList []*roles.Role) []Suggestion {
	var out []Suggestion
	for code, st := range stats {
		if st.grantRequests >= promoteThreshold {
			out = append(out, Suggestion{
				Permission: code,
				Kind:       SuggestionPromoteToRole,
				Detail: fmt.Sprintf("%d temporary grant requests in the window; consider adding %s to a role",
					st.grantRequests, code),
			})
		}
	}
	covered := catalog.NewSet()
	for _, r := range roleList {
		if !r.IsActive {
			continue
		}
		covered = covered.Union(r.Permissions)
	}
	for _, code := range covered.Codes() {
		st, ok := stats[code]
		if ok && st.usage.Checks > 0 {
			continue
		}
		out = append(out, Suggestion{
			Permission: code,
			Kind:       SuggestionNarrowRole,
			Detail:     fmt.Sprintf("%s is assigned through roles but saw no checks in the window; consider narrowing", code),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Permission < out[j].Permission
	})
	return out
}
