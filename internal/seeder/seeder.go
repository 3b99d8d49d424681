// Package seeder loads demo roles and users for development mode. It is
// never wired in production deployments.
package seeder

import (
	"context"
	"log/slog"

	"wardgate/internal/auth"
	"wardgate/internal/catalog"
	"wardgate/internal/roles"
	dErrors "wardgate/pkg/domain-errors"
)

type demoRole struct {
	code        string
	name        string
	permissions []catalog.Code
}

type demoUser struct {
	username    string
	displayName string
	password    string
	isAdmin     bool
	roleCodes   []string
}

var demoRoles = []demoRole{
	{"nurse", "Nurse", []catalog.Code{"view_patients", "view_appointments", "edit_appointments"}},
	{"doctor", "Doctor", []catalog.Code{"view_patients", "edit_patients", "view_appointments", "edit_appointments", "prescribe_medication"}},
	{"billing_clerk", "Billing Clerk", []catalog.Code{"view_billing", "view_patients"}},
	{"permission_manager", "Permission Manager", []catalog.Code{"manage_permissions", "view_staff", "view_analytics"}},
}

var demoUsers = []demoUser{
	{"admin", "System Administrator", "admin-dev-password", true, nil},
	{"nina", "Nina Okafor", "nurse-dev-password", false, []string{"nurse"}},
	{"derek", "Derek Boateng", "doctor-dev-password", false, []string{"doctor"}},
	{"mara", "Mara Ellis", "manager-dev-password", false, []string{"permission_manager"}},
}

// Seeder provisions demo data through the same services the API uses, so
// seeded state obeys every validation rule.
type Seeder struct {
	auth   *auth.Service
	roles  *roles.Service
	logger *slog.Logger
}

func New(authSvc *auth.Service, roleSvc *roles.Service, logger *slog.Logger) *Seeder {
	return &Seeder{auth: authSvc, roles: roleSvc, logger: logger}
}

// Run creates the demo roles and users, skipping anything already present
// so repeated startups are harmless.
func (s *Seeder) Run(ctx context.Context) error {
	roleIDs := make(map[string]*roles.Role)
	for _, dr := range demoRoles {
		role, err := s.roles.CreateRole(ctx, dr.code, dr.name, dr.permissions)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				s.logger.DebugContext(ctx, "demo role already present", "role", dr.code)
				continue
			}
			return err
		}
		roleIDs[dr.code] = role
		s.logger.InfoContext(ctx, "demo role created", "role", dr.code)
	}

	for _, du := range demoUsers {
		user, err := s.auth.CreateUser(ctx, du.username, du.displayName, du.password, du.isAdmin)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				s.logger.DebugContext(ctx, "demo user already present", "username", du.username)
				continue
			}
			return err
		}
		for _, code := range du.roleCodes {
			role, ok := roleIDs[code]
			if !ok {
				continue
			}
			if err := s.roles.AssignRole(ctx, user.ID, role.ID); err != nil {
				return err
			}
		}
		s.logger.InfoContext(ctx, "demo user created", "username", du.username)
	}
	return nil
}
