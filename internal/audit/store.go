package audit

import (
	"context"
	"time"

	id "wardgate/pkg/domain"
)

// Store is the append-only sink for authorization check entries.
// Error Contract:
// - Append never reports duplicates; entries are not deduplicated.
// - List methods return entries newest first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]Entry, error)
	ListSince(ctx context.Context, since time.Time) ([]Entry, error)
}
