package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	id "wardgate/pkg/domain"
	dErrors "wardgate/pkg/domain-errors"
)

// fakeManager scripts the sweep pass without a real store.
type fakeManager struct {
	stale      []*grants.Grant
	expireErrs map[id.GrantID]error
	expired    []id.GrantID
}

func (f *fakeManager) ListExpiredActive(_ context.Context) ([]*grants.Grant, error) {
	return f.stale, nil
}

func (f *fakeManager) Expire(_ context.Context, grantID id.GrantID) (*grants.Grant, error) {
	if err, ok := f.expireErrs[grantID]; ok {
		return nil, err
	}
	f.expired = append(f.expired, grantID)
	return &grants.Grant{ID: grantID, Status: grants.StatusExpired}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staleGrant() *grants.Grant {
	return &grants.Grant{
		ID:        id.NewGrantID(),
		UserID:    id.NewUserID(),
		Status:    grants.StatusActive,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
}

func TestRunOnceExpiresStaleGrants(t *testing.T) {
	a, b := staleGrant(), staleGrant()
	mgr := &fakeManager{stale: []*grants.Grant{a, b}}

	s, err := New(mgr, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 0, res.Skipped)
	assert.ElementsMatch(t, []id.GrantID{a.ID, b.ID}, mgr.expired)
}

// A grant that lost an InvalidTransition race is skipped, not an error.
func TestRunOnceSkipsLostRaces(t *testing.T) {
	won, lost, gone := staleGrant(), staleGrant(), staleGrant()
	mgr := &fakeManager{
		stale: []*grants.Grant{won, lost, gone},
		expireErrs: map[id.GrantID]error{
			lost.ID: dErrors.New(dErrors.CodeInvalidTransition, "grant is not active"),
			gone.ID: dErrors.New(dErrors.CodeNotFound, "grant not found"),
		},
	}

	s, err := New(mgr, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 2, res.Skipped)
}

func TestRunOnceSurfacesUnexpectedErrors(t *testing.T) {
	broken := staleGrant()
	mgr := &fakeManager{
		stale: []*grants.Grant{broken},
		expireErrs: map[id.GrantID]error{
			broken.ID: dErrors.New(dErrors.CodeInternal, "store unavailable"),
		},
	}

	s, err := New(mgr, WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.Error(t, err)
}

func TestRunOnceEmptySweep(t *testing.T) {
	s, err := New(&fakeManager{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Zero(t, res.Skipped)
}

// RunOnce is idempotent against a real store: a second pass finds nothing.
func TestSweepIdempotentAgainstStore(t *testing.T) {
	cat := catalog.New()
	require.NoError(t, cat.Register("edit_billing", "Edit Billing", "billing", catalog.SensitivityHigh))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := clock
	mgr, err := grants.NewManager(grants.NewInMemoryStore(), cat,
		grants.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	g, err := mgr.RequestGrant(context.Background(), id.NewUserID(), "edit_billing", "close", clock.Add(time.Hour))
	require.NoError(t, err)
	_, err = mgr.MarkApproved(context.Background(), g.ID, id.NewUserID())
	require.NoError(t, err)
	_, err = mgr.Activate(context.Background(), g.ID)
	require.NoError(t, err)

	now = clock.Add(2 * time.Hour)

	s, err := New(mgr, WithLogger(quietLogger()))
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)

	res, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Zero(t, res.Skipped)
}
