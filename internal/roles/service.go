package roles

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
	"wardgate/pkg/sentinel"
)

// Store defines the persistence interface for roles and assignments.
// Error Contract: Find methods return sentinel.ErrNotFound (optionally
// wrapped) when the entity doesn't exist.
type Store interface {
	SaveRole(ctx context.Context, role *Role) error
	FindRole(ctx context.Context, roleID id.RoleID) (*Role, error)
	FindRoleByCode(ctx context.Context, code string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	SaveAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, userID id.UserID, roleID id.RoleID) error
	RolesForUser(ctx context.Context, userID id.UserID) ([]*Role, error)
}

// Service owns role lifecycle and the role-derived half of permission
// resolution. Roles are created and edited by administrators only.
type Service struct {
	store   Store
	catalog *catalog.Catalog
	logger  *slog.Logger
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

// NewService constructs a role service over the given store and catalog.
func NewService(store Store, cat *catalog.Catalog, opts ...Option) (*Service, error) {
	if store == nil || cat == nil {
		return nil, errors.New("store and catalog are required")
	}
	svc := &Service{store: store, catalog: cat, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRole registers a new role. Every permission code must exist in the
// catalog; an unregistered code fails the whole creation.
func (s *Service) CreateRole(ctx context.Context, code, name string, permissions []catalog.Code) (*Role, error) {
	if code == "" || name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role code and name are required")
	}
	set := catalog.NewSet()
	for _, p := range permissions {
		if !s.catalog.Exists(p) {
			return nil, dErrors.New(dErrors.CodeInvalidPermission, "permission not in catalog: "+string(p))
		}
		set.Add(p)
	}
	if existing, err := s.store.FindRoleByCode(ctx, code); err == nil && existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "role code already exists: "+code)
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing role")
	}

	now := time.Now()
	role := &Role{
		ID:          id.NewRoleID(),
		Code:        code,
		Name:        name,
		Permissions: set,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveRole(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save role")
	}
	s.logger.InfoContext(ctx, "role created",
		"role_id", role.ID.String(),
		"role_code", role.Code,
		"permission_count", len(set),
	)
	return role, nil
}

// SetRolePermissions replaces the role's permission set. Codes are validated
// against the catalog the same way as on creation.
func (s *Service) SetRolePermissions(ctx context.Context, roleID id.RoleID, permissions []catalog.Code) (*Role, error) {
	set := catalog.NewSet()
	for _, p := range permissions {
		if !s.catalog.Exists(p) {
			return nil, dErrors.New(dErrors.CodeInvalidPermission, "permission not in catalog: "+string(p))
		}
		set.Add(p)
	}
	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return nil, translateNotFound(err, "role not found")
	}
	role.Permissions = set
	role.UpdatedAt = time.Now()
	if err := s.store.SaveRole(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save role")
	}
	return role, nil
}

// SetActive soft-enables or soft-disables a role without touching assignments.
func (s *Service) SetActive(ctx context.Context, roleID id.RoleID, active bool) (*Role, error) {
	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return nil, translateNotFound(err, "role not found")
	}
	role.IsActive = active
	role.UpdatedAt = time.Now()
	if err := s.store.SaveRole(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save role")
	}
	return role, nil
}

// GetRole returns the role by ID.
func (s *Service) GetRole(ctx context.Context, roleID id.RoleID) (*Role, error) {
	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return nil, translateNotFound(err, "role not found")
	}
	return role, nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	return roles, nil
}

// AssignRole gives the user the role. Assigning twice is a no-op.
func (s *Service) AssignRole(ctx context.Context, userID id.UserID, roleID id.RoleID) error {
	if _, err := s.store.FindRole(ctx, roleID); err != nil {
		return translateNotFound(err, "role not found")
	}
	a := Assignment{UserID: userID, RoleID: roleID, AssignedAt: time.Now()}
	if err := s.store.SaveAssignment(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign role")
	}
	return nil
}

// UnassignRole removes the role from the user. Unassigning an unheld role
// is a no-op.
func (s *Service) UnassignRole(ctx context.Context, userID id.UserID, roleID id.RoleID) error {
	if err := s.store.DeleteAssignment(ctx, userID, roleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unassign role")
	}
	return nil
}

// EffectivePermissions returns the union of permissions across the user's
// active roles. Inactive roles contribute nothing. A user with no roles
// gets an empty set, never an error.
func (s *Service) EffectivePermissions(ctx context.Context, userID id.UserID) (catalog.Set, error) {
	held, err := s.store.RolesForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return catalog.NewSet(), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user roles")
	}
	set := catalog.NewSet()
	for _, role := range held {
		if !role.IsActive {
			continue
		}
		set = set.Union(role.Permissions)
	}
	return set, nil
}

// translateNotFound maps a store sentinel onto a domain error exactly once.
func translateNotFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
