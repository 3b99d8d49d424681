package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wardgate/internal/analytics"
	"wardgate/internal/approval"
	"wardgate/internal/auth"
	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	"wardgate/internal/platform/middleware"
	"wardgate/internal/resolver"
	"wardgate/internal/roles"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// AuthService is the slice of the auth service the transport needs.
type AuthService interface {
	Login(ctx context.Context, username, password, userAgent string) (string, *auth.User, error)
}

// GrantService exposes grant lifecycle operations.
type GrantService interface {
	RequestGrant(ctx context.Context, userID id.UserID, permission catalog.Code, reason string, expiresAt time.Time) (*grants.Grant, error)
	ListGrants(ctx context.Context, userID id.UserID) ([]*grants.Grant, error)
	GetGrant(ctx context.Context, grantID id.GrantID) (*grants.Grant, error)
	Revoke(ctx context.Context, grantID id.GrantID, revokedBy id.UserID) (*grants.Grant, error)
}

// ApprovalService exposes decision recording and the pending queue.
type ApprovalService interface {
	RecordDecision(ctx context.Context, requestID id.ApprovalID, approverID id.UserID, decision approval.Decision, notes string) (*approval.Request, error)
	ListPending(ctx context.Context) ([]*approval.Request, error)
	GetByGrant(ctx context.Context, grantID id.GrantID) (*approval.Request, error)
}

// RoleService exposes role administration.
type RoleService interface {
	CreateRole(ctx context.Context, code, name string, permissions []catalog.Code) (*roles.Role, error)
	SetRolePermissions(ctx context.Context, roleID id.RoleID, permissions []catalog.Code) (*roles.Role, error)
	SetActive(ctx context.Context, roleID id.RoleID, active bool) (*roles.Role, error)
	GetRole(ctx context.Context, roleID id.RoleID) (*roles.Role, error)
	ListRoles(ctx context.Context) ([]*roles.Role, error)
	AssignRole(ctx context.Context, userID id.UserID, roleID id.RoleID) error
	UnassignRole(ctx context.Context, userID id.UserID, roleID id.RoleID) error
}

// Resolver answers effective-set queries.
type Resolver interface {
	Resolve(ctx context.Context, userID id.UserID) (*resolver.Effective, error)
	Has(ctx context.Context, userID id.UserID, code catalog.Code) (bool, error)
	HasAny(ctx context.Context, userID id.UserID, codes ...catalog.Code) (bool, error)
	HasAll(ctx context.Context, userID id.UserID, codes ...catalog.Code) (bool, error)
}

// AnalyticsService produces the usage and risk report.
type AnalyticsService interface {
	Report(ctx context.Context) (*analytics.Report, error)
}

// Handler is the thin HTTP layer. It delegates to domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	auth      AuthService
	grants    GrantService
	approvals ApprovalService
	roles     RoleService
	resolver  Resolver
	analytics AnalyticsService
	logger    *slog.Logger
}

func NewHandler(
	authSvc AuthService,
	grantSvc GrantService,
	approvalSvc ApprovalService,
	roleSvc RoleService,
	res Resolver,
	analyticsSvc AnalyticsService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:      authSvc,
		grants:    grantSvc,
		approvals: approvalSvc,
		roles:     roleSvc,
		resolver:  res,
		analytics: analyticsSvc,
		logger:    logger,
	}
}

// NewRouter wires all endpoints with the middleware stack. Everything under
// the authenticated group requires a bearer token; the admin group
// additionally requires manage_permissions (or the admin override, which the
// resolver folds in).
func NewRouter(h *Handler, tokens *auth.TokenService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me/permissions", h.handleMyPermissions)
		r.Get("/temporary-permissions", h.handleListGrants)
		r.Post("/temporary-permissions", h.handleRequestGrant)
		r.Get("/temporary-permissions/{id}", h.handleGetGrant)

		r.Group(func(r chi.Router) {
			r.Use(h.requirePermission(catalog.Code("manage_permissions")))

			r.Get("/admin/permissions/pending", h.handleListPending)
			r.Post("/admin/permissions/{id}/approve", h.handleApprove)
			r.Post("/admin/permissions/{id}/reject", h.handleReject)
			r.Delete("/admin/permissions/{id}", h.handleRevoke)

			r.Post("/admin/roles", h.handleCreateRole)
			r.Get("/admin/roles", h.handleListRoles)
			r.Get("/admin/roles/{id}", h.handleGetRole)
			r.Put("/admin/roles/{id}/permissions", h.handleSetRolePermissions)
			r.Post("/admin/roles/{id}/activate", h.handleActivateRole)
			r.Post("/admin/roles/{id}/deactivate", h.handleDeactivateRole)
			r.Post("/admin/roles/{id}/assign/{userId}", h.handleAssignRole)
			r.Delete("/admin/roles/{id}/assign/{userId}", h.handleUnassignRole)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requirePermission(catalog.Code("view_analytics")))
			r.Get("/permission-analytics", h.handleAnalytics)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requirePermission gates a route group on the caller holding a permission.
// The resolver folds in the admin override, so administrators pass every
// guard without holding the code through a role.
func (h *Handler) requirePermission(code catalog.Code) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			allowed, err := h.resolver.Has(r.Context(), principal.UserID, code)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "permission guard failed", "error", err)
				writeError(w, err)
				return
			}
			if !allowed {
				writeError(w, dErrors.New(dErrors.CodeForbidden, "missing required permission"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal extracts the authenticated identity, replying 401 when absent.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	return principal, true
}
