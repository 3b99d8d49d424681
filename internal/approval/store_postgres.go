package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

// PostgresStore persists approval requests in PostgreSQL. Apply runs inside
// a transaction with SELECT ... FOR UPDATE, so the row lock serializes
// concurrent decisions on the same request.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed approval store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// stepDecisionRow is the JSON shape for a recorded decision.
type stepDecisionRow struct {
	ApproverID string    `json:"approver_id"`
	Decision   string    `json:"decision"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

const approvalColumns = `id, grant_id, requester_id, permission, required_approvers, decisions, state, created_at, resolved_at`

func (s *PostgresStore) Save(ctx context.Context, req *Request) error {
	if req == nil {
		return fmt.Errorf("approval request is required")
	}
	required, decisions, err := marshalRouting(req)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into approval_requests (`+approvalColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(req.ID),
		uuid.UUID(req.GrantID),
		uuid.UUID(req.RequesterID),
		string(req.Permission),
		required,
		decisions,
		string(req.State),
		req.CreatedAt,
		nullableTime(req.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("save approval request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, requestID id.ApprovalID) (*Request, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+approvalColumns+`
		from approval_requests
		where id = $1
	`, uuid.UUID(requestID))
	return scanRequest(row)
}

func (s *PostgresStore) FindByGrant(ctx context.Context, grantID id.GrantID) (*Request, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+approvalColumns+`
		from approval_requests
		where grant_id = $1
	`, uuid.UUID(grantID))
	return scanRequest(row)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+approvalColumns+`
		from approval_requests
		where state = $1
		order by created_at
	`, string(StatePending))
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply locks the request row, runs the mutation, and writes the result back
// in the same transaction.
func (s *PostgresStore) Apply(ctx context.Context, requestID id.ApprovalID, apply func(*Request) error) (*Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		select `+approvalColumns+`
		from approval_requests
		where id = $1
		for update
	`, uuid.UUID(requestID))
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if err := apply(req); err != nil {
		return nil, err
	}
	// Routing is immutable after enqueue; only decisions and state change.
	_, decisions, err := marshalRouting(req)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		update approval_requests
		set decisions = $1, state = $2, resolved_at = $3
		where id = $4
	`, decisions, string(req.State), nullableTime(req.ResolvedAt), uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("update approval request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval update: %w", err)
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		req           Request
		requestUUID   uuid.UUID
		grantUUID     uuid.UUID
		requesterUUID uuid.UUID
		permission    string
		state         string
		rawRequired   []byte
		rawDecisions  []byte
		resolvedAt    sql.NullTime
	)
	err := row.Scan(
		&requestUUID, &grantUUID, &requesterUUID, &permission,
		&rawRequired, &rawDecisions, &state, &req.CreatedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval request not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan approval request: %w", err)
	}
	req.ID = id.ApprovalID(requestUUID)
	req.GrantID = id.GrantID(grantUUID)
	req.RequesterID = id.UserID(requesterUUID)
	req.Permission = catalog.Code(permission)
	req.State = State(state)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	if len(rawRequired) > 0 {
		var required []string
		if err := json.Unmarshal(rawRequired, &required); err != nil {
			return nil, fmt.Errorf("decode required approvers: %w", err)
		}
		for _, code := range required {
			req.RequiredApprovers = append(req.RequiredApprovers, catalog.Code(code))
		}
	}
	if len(rawDecisions) > 0 {
		var decisionRows []stepDecisionRow
		if err := json.Unmarshal(rawDecisions, &decisionRows); err != nil {
			return nil, fmt.Errorf("decode decisions: %w", err)
		}
		for _, d := range decisionRows {
			approverID, err := id.ParseUserID(d.ApproverID)
			if err != nil {
				return nil, fmt.Errorf("decode decision approver: %w", err)
			}
			req.Decisions = append(req.Decisions, StepDecision{
				ApproverID: approverID,
				Decision:   Decision(d.Decision),
				Timestamp:  d.Timestamp,
				Notes:      d.Notes,
			})
		}
	}
	return &req, nil
}

func marshalRouting(req *Request) (required, decisions []byte, err error) {
	codes := make([]string, 0, len(req.RequiredApprovers))
	for _, c := range req.RequiredApprovers {
		codes = append(codes, string(c))
	}
	required, err = json.Marshal(codes)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal required approvers: %w", err)
	}
	decisionRows := make([]stepDecisionRow, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decisionRows = append(decisionRows, stepDecisionRow{
			ApproverID: d.ApproverID.String(),
			Decision:   string(d.Decision),
			Timestamp:  d.Timestamp,
			Notes:      d.Notes,
		})
	}
	decisions, err = json.Marshal(decisionRows)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal decisions: %w", err)
	}
	return required, decisions, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
