package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Register("view_patients", "View Patients", "patients", catalog.SensitivityLow))
	require.NoError(t, c.Register("edit_patients", "Edit Patients", "patients", catalog.SensitivityMedium))
	require.NoError(t, c.Register("view_billing", "View Billing", "billing", catalog.SensitivityMedium))
	return c
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewInMemoryStore(), testCatalog(t))
	require.NoError(t, err)
	return svc
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateRole(context.Background(), "nurse", "Nurse", []catalog.Code{"view_patients", "launch_rockets"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidPermission))
}

func TestCreateRoleDuplicateCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "nurse", "Nurse", []catalog.Code{"view_patients"})
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "nurse", "Nurse Again", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := id.NewUserID()

	role, err := svc.CreateRole(ctx, "nurse", "Nurse", []catalog.Code{"view_patients"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(ctx, userID, role.ID))
	require.NoError(t, svc.AssignRole(ctx, userID, role.ID))

	perms, err := svc.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Code{"view_patients"}, perms.Codes())
}

func TestAssignRoleUnknownRole(t *testing.T) {
	svc := newTestService(t)

	err := svc.AssignRole(context.Background(), id.NewUserID(), id.NewRoleID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUnassignRoleMissingIsNoOp(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.UnassignRole(context.Background(), id.NewUserID(), id.NewRoleID()))
}

func TestEffectivePermissionsUnionsActiveRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := id.NewUserID()

	nurse, err := svc.CreateRole(ctx, "nurse", "Nurse", []catalog.Code{"view_patients"})
	require.NoError(t, err)
	billing, err := svc.CreateRole(ctx, "billing", "Billing", []catalog.Code{"view_billing", "view_patients"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(ctx, userID, nurse.ID))
	require.NoError(t, svc.AssignRole(ctx, userID, billing.ID))

	perms, err := svc.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Code{"view_billing", "view_patients"}, perms.Codes())
}

func TestInactiveRoleContributesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := id.NewUserID()

	role, err := svc.CreateRole(ctx, "nurse", "Nurse", []catalog.Code{"view_patients"})
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, userID, role.ID))

	_, err = svc.SetActive(ctx, role.ID, false)
	require.NoError(t, err)

	perms, err := svc.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, perms.Codes())

	// Re-enabling restores the permissions without reassignment.
	_, err = svc.SetActive(ctx, role.ID, true)
	require.NoError(t, err)
	perms, err = svc.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Code{"view_patients"}, perms.Codes())
}

func TestEffectivePermissionsNoRoles(t *testing.T) {
	svc := newTestService(t)

	perms, err := svc.EffectivePermissions(context.Background(), id.NewUserID())
	require.NoError(t, err)
	assert.Empty(t, perms.Codes())
}

func TestSetRolePermissionsValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "nurse", "Nurse", []catalog.Code{"view_patients"})
	require.NoError(t, err)

	_, err = svc.SetRolePermissions(ctx, role.ID, []catalog.Code{"not_a_thing"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidPermission))

	updated, err := svc.SetRolePermissions(ctx, role.ID, []catalog.Code{"view_patients", "edit_patients"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Code{"edit_patients", "view_patients"}, updated.Permissions.Codes())
}
