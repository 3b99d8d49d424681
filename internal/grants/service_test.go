package grants

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// fakeClock is a mutable time source for driving expiry in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Register("edit_billing", "Edit Billing", "billing", catalog.SensitivityHigh))
	require.NoError(t, c.Register("perform_surgery", "Perform Surgery", "surgery", catalog.SensitivityCritical))
	return c
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, err := NewManager(NewInMemoryStore(), testCatalog(t), WithClock(clock.Now))
	require.NoError(t, err)
	return m, clock
}

// approveAndActivate drives a grant through the workflow-owned transitions.
func approveAndActivate(t *testing.T, m *Manager, grantID id.GrantID) {
	t.Helper()
	_, err := m.MarkApproved(context.Background(), grantID, id.NewUserID())
	require.NoError(t, err)
	_, err = m.Activate(context.Background(), grantID)
	require.NoError(t, err)
}

func TestRequestGrantUnknownPermission(t *testing.T) {
	m, clock := newTestManager(t)

	_, err := m.RequestGrant(context.Background(), id.NewUserID(), "launch_rockets", "because", clock.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownPermission))
}

func TestRequestGrantInvalidExpiry(t *testing.T) {
	m, clock := newTestManager(t)

	_, err := m.RequestGrant(context.Background(), id.NewUserID(), "edit_billing", "month-end close", clock.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidExpiry))

	_, err = m.RequestGrant(context.Background(), id.NewUserID(), "edit_billing", "month-end close", clock.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidExpiry))
}

func TestRequestGrantStartsRequested(t *testing.T) {
	m, clock := newTestManager(t)

	g, err := m.RequestGrant(context.Background(), id.NewUserID(), "edit_billing", "month-end close", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, g.Status)
	assert.Equal(t, clock.Now(), g.RequestedAt)
}

// Duplicate detection applies to ACTIVE grants only: two REQUESTED grants
// for the same permission may coexist, each pending its own approval.
func TestDuplicateDetectionActiveOnly(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	userID := id.NewUserID()
	expiry := clock.Now().Add(time.Hour)

	first, err := m.RequestGrant(ctx, userID, "perform_surgery", "emergency", expiry)
	require.NoError(t, err)

	second, err := m.RequestGrant(ctx, userID, "perform_surgery", "emergency again", expiry)
	require.NoError(t, err, "REQUESTED grants may coexist")
	assert.NotEqual(t, first.ID, second.ID)

	approveAndActivate(t, m, first.ID)

	_, err = m.RequestGrant(ctx, userID, "perform_surgery", "third try", expiry)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateActiveGrant))
}

// When duplicate REQUESTED grants are both approved, only the first
// activation succeeds; the loser stays APPROVED. Revoking the single ACTIVE
// grant therefore always retracts the permission.
func TestActivateDuplicateActiveGrantFails(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	userID := id.NewUserID()
	expiry := clock.Now().Add(time.Hour)

	first, err := m.RequestGrant(ctx, userID, "perform_surgery", "emergency", expiry)
	require.NoError(t, err)
	second, err := m.RequestGrant(ctx, userID, "perform_surgery", "emergency again", expiry)
	require.NoError(t, err)

	approveAndActivate(t, m, first.ID)
	_, err = m.MarkApproved(ctx, second.ID, id.NewUserID())
	require.NoError(t, err)

	_, err = m.Activate(ctx, second.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateActiveGrant))

	g, err := m.GetGrant(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, g.Status)

	// With only one ACTIVE grant possible, revoking it removes access.
	_, err = m.Revoke(ctx, first.ID, id.NewUserID())
	require.NoError(t, err)
	perms, err := m.ListActivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.False(t, perms.Has("perform_surgery"))

	// The approved duplicate may activate once the pair is free again.
	_, err = m.Activate(ctx, second.ID)
	require.NoError(t, err)
	perms, err = m.ListActivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.True(t, perms.Has("perform_surgery"))
}

func TestLifecycleTransitions(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	userID := id.NewUserID()

	g, err := m.RequestGrant(ctx, userID, "edit_billing", "month-end close", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	approver := id.NewUserID()
	approved, err := m.MarkApproved(ctx, g.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	active, err := m.Activate(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, active.Status)

	// ACTIVE grants cannot be approved again.
	_, err = m.MarkApproved(ctx, g.ID, approver)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestActivateRequiresApproved(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	g, err := m.RequestGrant(ctx, id.NewUserID(), "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Activate(ctx, g.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestRejectSetsReason(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	g, err := m.RequestGrant(ctx, id.NewUserID(), "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	rejected, err := m.MarkRejected(ctx, g.ID, "not justified")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "not justified", rejected.RejectionReason)
}

func TestRevokeOnlyFromActive(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	admin := id.NewUserID()

	g, err := m.RequestGrant(ctx, id.NewUserID(), "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Revoke(ctx, g.ID, admin)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	approveAndActivate(t, m, g.ID)
	revoked, err := m.Revoke(ctx, g.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedBy)
	assert.Equal(t, admin, *revoked.RevokedBy)
}

func TestTransitionUnknownGrant(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Expire(context.Background(), id.NewGrantID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

// A racing revoke and expire on the same grant produce exactly one terminal
// state; the loser fails with InvalidTransition.
func TestRevokeExpireRace(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	g, err := m.RequestGrant(ctx, id.NewUserID(), "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	approveAndActivate(t, m, g.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = m.Revoke(ctx, g.ID, id.NewUserID())
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = m.Expire(ctx, g.ID)
	}()
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	final, err := m.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, final.Status.Terminal())
}

func TestListActivePermissionsExcludesExpired(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	userID := id.NewUserID()

	g, err := m.RequestGrant(ctx, userID, "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	approveAndActivate(t, m, g.ID)

	perms, err := m.ListActivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.True(t, perms.Has("edit_billing"))

	// Past expiry the grant is excluded even before the sweeper has run.
	clock.Advance(2 * time.Hour)
	perms, err = m.ListActivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.False(t, perms.Has("edit_billing"))
}

// Expiry monotonicity: once terminal, the grant never reappears.
func TestTerminalGrantNeverActiveAgain(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	userID := id.NewUserID()

	g, err := m.RequestGrant(ctx, userID, "edit_billing", "close", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	approveAndActivate(t, m, g.ID)

	clock.Advance(2 * time.Hour)
	_, err = m.Expire(ctx, g.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		perms, err := m.ListActivePermissions(ctx, userID)
		require.NoError(t, err)
		assert.False(t, perms.Has("edit_billing"))
	}

	// No path back to ACTIVE.
	_, err = m.Activate(ctx, g.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestHistoryFiltersByWindow(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.RequestGrant(ctx, id.NewUserID(), "edit_billing", "early", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	cutoff := clock.Now().Add(30 * time.Minute)
	clock.Advance(time.Hour)
	late, err := m.RequestGrant(ctx, id.NewUserID(), "perform_surgery", "late", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	history, err := m.History(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, late.ID, history[0].ID)
}
