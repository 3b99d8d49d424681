package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wardgate/internal/catalog"
	id "wardgate/pkg/domain"
	psync "wardgate/pkg/platform/sync"
	"wardgate/pkg/sentinel"
)

// InMemoryStore keeps approval requests in memory for tests and dev mode.
// Apply serializes per request on a sharded mutex, which gives the engine
// its atomic claim-resolution step.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.ApprovalID]*Request
	byGrant  map[id.GrantID]id.ApprovalID
	locks    *psync.ShardedMutex
}

// NewInMemoryStore constructs an empty in-memory approval store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.ApprovalID]*Request),
		byGrant:  make(map[id.GrantID]id.ApprovalID),
		locks:    psync.NewShardedMutex(),
	}
}

func (s *InMemoryStore) Save(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyRequest(req)
	s.requests[req.ID] = cp
	s.byGrant[req.GrantID] = req.ID
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, requestID id.ApprovalID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[requestID]; ok {
		return copyRequest(req), nil
	}
	return nil, fmt.Errorf("approval request not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByGrant(_ context.Context, grantID id.GrantID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if requestID, ok := s.byGrant[grantID]; ok {
		if req, ok := s.requests[requestID]; ok {
			return copyRequest(req), nil
		}
	}
	return nil, fmt.Errorf("approval request not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Request
	for _, req := range s.requests {
		if req.State == StatePending {
			out = append(out, copyRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Apply runs the mutation while holding the request's lock, so concurrent
// decisions on the same request serialize.
func (s *InMemoryStore) Apply(_ context.Context, requestID id.ApprovalID, apply func(*Request) error) (*Request, error) {
	key := requestID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("approval request not found: %w", sentinel.ErrNotFound)
	}
	working := copyRequest(req)
	if err := apply(working); err != nil {
		return nil, err
	}
	s.requests[requestID] = working
	return copyRequest(working), nil
}

func copyRequest(req *Request) *Request {
	cp := *req
	cp.RequiredApprovers = append([]catalog.Code(nil), req.RequiredApprovers...)
	cp.Decisions = append([]StepDecision(nil), req.Decisions...)
	if req.ResolvedAt != nil {
		t := *req.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
