package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_entries (occurred_at, user_id, permission, granted, source, request_id)
		values ($1, $2, $3, $4, $5, $6)
	`,
		entry.Timestamp,
		uuid.UUID(entry.UserID),
		string(entry.Permission),
		entry.Granted,
		string(entry.Source),
		entry.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select occurred_at, user_id, permission, granted, source, request_id
		from audit_entries
		where user_id = $1
		order by occurred_at desc
		limit $2
	`, uuid.UUID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListSince(ctx context.Context, since time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select occurred_at, user_id, permission, granted, source, request_id
		from audit_entries
		where occurred_at >= $1
		order by occurred_at desc
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			entry      Entry
			userUUID   uuid.UUID
			permission string
			source     string
		)
		err := rows.Scan(&entry.Timestamp, &userUUID, &permission, &entry.Granted, &source, &entry.RequestID)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.UserID = id.UserID(userUUID)
		entry.Permission = catalog.Code(permission)
		entry.Source = Source(source)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
