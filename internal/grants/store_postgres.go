package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

const pgErrUniqueViolation = "23505"

// PostgresStore persists grants in PostgreSQL. Transitions rely on a
// conditional UPDATE (status = expected) so the row lock serializes
// concurrent writers of the same grant; a losing racer matches zero rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed grant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const grantColumns = `id, user_id, permission, reason, requested_at, expires_at, status, approved_by, approved_at, rejection_reason, revoked_by`

func (s *PostgresStore) Save(ctx context.Context, grant *Grant) error {
	if grant == nil {
		return fmt.Errorf("grant is required")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into temporary_grants (`+grantColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(grant.ID),
		uuid.UUID(grant.UserID),
		string(grant.Permission),
		grant.Reason,
		grant.RequestedAt,
		grant.ExpiresAt,
		string(grant.Status),
		nullableUUID(grant.ApprovedBy),
		nullableTime(grant.ApprovedAt),
		nullString(grant.RejectionReason),
		nullableUUID(grant.RevokedBy),
	)
	if err != nil {
		return fmt.Errorf("save grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, grantID id.GrantID) (*Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+grantColumns+`
		from temporary_grants
		where id = $1
	`, uuid.UUID(grantID))
	return scanGrant(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Grant, error) {
	return s.list(ctx, `
		select `+grantColumns+`
		from temporary_grants
		where user_id = $1
		order by requested_at desc
	`, uuid.UUID(userID))
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID id.UserID) ([]*Grant, error) {
	return s.list(ctx, `
		select `+grantColumns+`
		from temporary_grants
		where user_id = $1 and status = $2
	`, uuid.UUID(userID), string(StatusActive))
}

func (s *PostgresStore) ListExpiredActive(ctx context.Context, now time.Time) ([]*Grant, error) {
	return s.list(ctx, `
		select `+grantColumns+`
		from temporary_grants
		where status = $1 and expires_at <= $2
	`, string(StatusActive), now)
}

func (s *PostgresStore) ListSince(ctx context.Context, since time.Time) ([]*Grant, error) {
	return s.list(ctx, `
		select `+grantColumns+`
		from temporary_grants
		where requested_at >= $1
		order by requested_at desc
	`, since)
}

// Transition performs the compare-and-swap: the UPDATE only matches when the
// grant is still in the expected from-status. Zero rows affected means a
// concurrent writer won, reported as sentinel.ErrInvalidState. A transition
// to ACTIVE that would duplicate an existing ACTIVE (user, permission) pair
// hits the partial unique index and is reported as sentinel.ErrConflict.
func (s *PostgresStore) Transition(ctx context.Context, grantID id.GrantID, from, to Status, update TransitionUpdate) (*Grant, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("transition %s -> %s not allowed: %w", from, to, sentinel.ErrInvalidState)
	}
	res, err := s.db.ExecContext(ctx, `
		update temporary_grants
		set status = $1,
		    approved_by = coalesce($2, approved_by),
		    approved_at = coalesce($3, approved_at),
		    rejection_reason = coalesce($4, rejection_reason),
		    revoked_by = coalesce($5, revoked_by)
		where id = $6 and status = $7
	`,
		string(to),
		nullableUUID(update.ApprovedBy),
		nullableTime(update.ApprovedAt),
		nullString(update.RejectionReason),
		nullableUUID(update.RevokedBy),
		uuid.UUID(grantID),
		string(from),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return nil, fmt.Errorf("active grant exists: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("transition grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition grant: %w", err)
	}
	if n == 0 {
		// Distinguish missing grant from failed precondition.
		if _, findErr := s.Find(ctx, grantID); findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("grant not in status %s: %w", from, sentinel.ErrInvalidState)
	}
	return s.Find(ctx, grantID)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []*Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*Grant, error) {
	var (
		g               Grant
		grantUUID       uuid.UUID
		userUUID        uuid.UUID
		permission      string
		status          string
		approvedBy      uuid.NullUUID
		approvedAt      sql.NullTime
		rejectionReason sql.NullString
		revokedBy       uuid.NullUUID
	)
	err := row.Scan(
		&grantUUID, &userUUID, &permission, &g.Reason, &g.RequestedAt, &g.ExpiresAt,
		&status, &approvedBy, &approvedAt, &rejectionReason, &revokedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("grant not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	g.ID = id.GrantID(grantUUID)
	g.UserID = id.UserID(userUUID)
	g.Permission = catalog.Code(permission)
	g.Status = Status(status)
	if approvedBy.Valid {
		v := id.UserID(approvedBy.UUID)
		g.ApprovedBy = &v
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		g.ApprovedAt = &t
	}
	if rejectionReason.Valid {
		g.RejectionReason = rejectionReason.String
	}
	if revokedBy.Valid {
		v := id.UserID(revokedBy.UUID)
		g.RevokedBy = &v
	}
	return &g, nil
}

func nullableUUID(v *id.UserID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
