package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

const pgErrUniqueViolation = "23505"

// PostgresStore persists roles and assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveRole(ctx context.Context, role *Role) error {
	if role == nil {
		return fmt.Errorf("role is required")
	}
	perms, err := json.Marshal(role.Permissions.Codes())
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into roles (id, code, name, permissions, is_active, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (id) do update
		set name = excluded.name,
		    permissions = excluded.permissions,
		    is_active = excluded.is_active,
		    updated_at = excluded.updated_at
	`, uuid.UUID(role.ID), role.Code, role.Name, perms, role.IsActive, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("role code taken: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save role: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRole(ctx context.Context, roleID id.RoleID) (*Role, error) {
	return s.scanRole(s.db.QueryRowContext(ctx, `
		select id, code, name, permissions, is_active, created_at, updated_at
		from roles
		where id = $1
	`, uuid.UUID(roleID)))
}

func (s *PostgresStore) FindRoleByCode(ctx context.Context, code string) (*Role, error) {
	return s.scanRole(s.db.QueryRowContext(ctx, `
		select id, code, name, permissions, is_active, created_at, updated_at
		from roles
		where code = $1
	`, code))
}

func (s *PostgresStore) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, permissions, is_active, created_at, updated_at
		from roles
		order by code
	`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []*Role
	for rows.Next() {
		role, err := scanRoleFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SaveAssignment(ctx context.Context, a Assignment) error {
	// Idempotent by construction: a second assignment hits the primary key
	// and is dropped without error.
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments (user_id, role_id, assigned_at)
		values ($1, $2, $3)
		on conflict (user_id, role_id) do nothing
	`, uuid.UUID(a.UserID), uuid.UUID(a.RoleID), a.AssignedAt)
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAssignment(ctx context.Context, userID id.UserID, roleID id.RoleID) error {
	res, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where user_id = $1 and role_id = $2
	`, uuid.UUID(userID), uuid.UUID(roleID))
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RolesForUser(ctx context.Context, userID id.UserID) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.code, r.name, r.permissions, r.is_active, r.created_at, r.updated_at
		from roles r
		join role_assignments a on a.role_id = r.id
		where a.user_id = $1
	`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	defer rows.Close()

	var out []*Role
	for rows.Next() {
		role, err := scanRoleFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanRole(row rowScanner) (*Role, error) {
	role, err := scanRoleFromRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role not found: %w", sentinel.ErrNotFound)
	}
	return role, err
}

func scanRoleFromRows(row rowScanner) (*Role, error) {
	var (
		role     Role
		roleUUID uuid.UUID
		rawPerms []byte
	)
	if err := row.Scan(&roleUUID, &role.Code, &role.Name, &rawPerms, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	role.ID = id.RoleID(roleUUID)
	var codes []catalog.Code
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &codes); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	role.Permissions = catalog.NewSet(codes...)
	return &role, nil
}
