package grants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

func grantRows(g *Grant) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "permission", "reason", "requested_at", "expires_at",
		"status", "approved_by", "approved_at", "rejection_reason", "revoked_by",
	})
	rows.AddRow(
		uuid.UUID(g.ID), uuid.UUID(g.UserID), string(g.Permission), g.Reason,
		g.RequestedAt, g.ExpiresAt, string(g.Status), nil, nil, nil, nil,
	)
	return rows
}

func testGrant() *Grant {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &Grant{
		ID:          id.NewGrantID(),
		UserID:      id.NewUserID(),
		Permission:  "edit_billing",
		Reason:      "month-end close",
		RequestedAt: now,
		ExpiresAt:   now.Add(time.Hour),
		Status:      StatusActive,
	}
}

func TestPostgresTransitionMatchesRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	g := testGrant()
	store := NewPostgres(db)

	mock.ExpectExec("update temporary_grants").
		WithArgs(string(StatusRevoked), sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), uuid.UUID(g.ID), string(StatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	revoked := *g
	revoked.Status = StatusRevoked
	mock.ExpectQuery("select (.+) from temporary_grants").
		WithArgs(uuid.UUID(g.ID)).
		WillReturnRows(grantRows(&revoked))

	admin := id.NewUserID()
	out, err := store.Transition(context.Background(), g.ID, StatusActive, StatusRevoked, TransitionUpdate{RevokedBy: &admin})
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, out.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Zero rows affected with the grant still present means the precondition
// failed: a concurrent writer already moved the grant.
func TestPostgresTransitionLostRace(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	g := testGrant()
	g.Status = StatusRevoked
	store := NewPostgres(db)

	mock.ExpectExec("update temporary_grants").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select (.+) from temporary_grants").
		WithArgs(uuid.UUID(g.ID)).
		WillReturnRows(grantRows(g))

	_, err = store.Transition(context.Background(), g.ID, StatusActive, StatusExpired, TransitionUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Activating against an existing ACTIVE (user, permission) pair hits the
// partial unique index; the violation surfaces as ErrConflict.
func TestPostgresTransitionActivateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	grantID := id.NewGrantID()

	mock.ExpectExec("update temporary_grants").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "temporary_grants_single_active_idx"})

	_, err = store.Transition(context.Background(), grantID, StatusApproved, StatusActive, TransitionUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionMissingGrant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	grantID := id.NewGrantID()

	mock.ExpectExec("update temporary_grants").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select (.+) from temporary_grants").
		WithArgs(uuid.UUID(grantID)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.Transition(context.Background(), grantID, StatusActive, StatusExpired, TransitionUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionRejectsIllegalEdge(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	_, err = store.Transition(context.Background(), id.NewGrantID(), StatusExpired, StatusActive, TransitionUpdate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
}

func TestPostgresListActiveByUser(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	g := testGrant()
	store := NewPostgres(db)

	mock.ExpectQuery("select (.+) from temporary_grants").
		WithArgs(uuid.UUID(g.UserID), string(StatusActive)).
		WillReturnRows(grantRows(g))

	out, err := store.ListActiveByUser(context.Background(), g.UserID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, g.ID, out[0].ID)
	assert.Equal(t, g.Permission, out[0].Permission)
	assert.NoError(t, mock.ExpectationsWereMet())
}
