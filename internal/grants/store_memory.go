package grants

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "wardgate/pkg/domain"
	psync "wardgate/pkg/platform/sync"
	"wardgate/pkg/sentinel"
)

// Error Contract:
// - Find returns sentinel.ErrNotFound (wrapped) when the grant doesn't exist.
// - Transition returns sentinel.ErrInvalidState (wrapped) on a failed
//   status precondition, and sentinel.ErrConflict (wrapped) when a
//   transition to ACTIVE would create a second ACTIVE grant for the same
//   (user, permission) pair.
// InMemoryStore keeps grants in memory for tests and dev mode. Reads take
// the store-wide RWMutex; transitions additionally serialize per grant on a
// sharded mutex so a racing revoke and expire produce exactly one terminal
// state.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[id.GrantID]*Grant
	locks  *psync.ShardedMutex
}

// NewInMemoryStore constructs an empty in-memory grant store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		grants: make(map[id.GrantID]*Grant),
		locks:  psync.NewShardedMutex(),
	}
}

func (s *InMemoryStore) Save(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *grant
	s.grants[grant.ID] = &cp
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, grantID id.GrantID) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.grants[grantID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, fmt.Errorf("grant not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for _, g := range s.grants {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListActiveByUser(_ context.Context, userID id.UserID) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for _, g := range s.grants {
		if g.UserID == userID && g.Status == StatusActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListExpiredActive(_ context.Context, now time.Time) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for _, g := range s.grants {
		if g.Status == StatusActive && !now.Before(g.ExpiresAt) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListSince(_ context.Context, since time.Time) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for _, g := range s.grants {
		if !g.RequestedAt.Before(since) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Transition performs a compare-and-swap on status. The per-grant lock makes
// the precondition check and the write atomic with respect to other writers
// of the same grant.
func (s *InMemoryStore) Transition(_ context.Context, grantID id.GrantID, from, to Status, update TransitionUpdate) (*Grant, error) {
	key := grantID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID]
	if !ok {
		return nil, fmt.Errorf("grant not found: %w", sentinel.ErrNotFound)
	}
	if g.Status != from || !CanTransition(from, to) {
		return nil, fmt.Errorf("grant is %s, not %s: %w", g.Status, from, sentinel.ErrInvalidState)
	}
	if to == StatusActive {
		// The store-wide lock makes this check atomic with the write, so
		// at most one ACTIVE grant exists per (user, permission) pair.
		for _, other := range s.grants {
			if other.ID != grantID && other.UserID == g.UserID &&
				other.Permission == g.Permission && other.Status == StatusActive {
				return nil, fmt.Errorf("active grant exists for %s: %w", g.Permission, sentinel.ErrConflict)
			}
		}
	}
	g.Status = to
	if update.ApprovedBy != nil {
		g.ApprovedBy = update.ApprovedBy
	}
	if update.ApprovedAt != nil {
		g.ApprovedAt = update.ApprovedAt
	}
	if update.RejectionReason != "" {
		g.RejectionReason = update.RejectionReason
	}
	if update.RevokedBy != nil {
		g.RevokedBy = update.RevokedBy
	}
	cp := *g
	return &cp, nil
}
