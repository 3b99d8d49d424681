package roles

import (
	"context"
	"fmt"
	"sync"

	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound (wrapped) when the requested entity does not exist
// - Return nil for successful operations
// InMemoryStore keeps roles and assignments in memory for tests and dev mode.
type InMemoryStore struct {
	mu          sync.RWMutex
	roles       map[id.RoleID]*Role
	assignments map[id.UserID]map[id.RoleID]Assignment
}

// NewInMemoryStore constructs an empty in-memory role store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		roles:       make(map[id.RoleID]*Role),
		assignments: make(map[id.UserID]map[id.RoleID]Assignment),
	}
}

func (s *InMemoryStore) SaveRole(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindRole(_ context.Context, roleID id.RoleID) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.roles[roleID]; ok {
		cp := *role
		return &cp, nil
	}
	return nil, fmt.Errorf("role not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindRoleByCode(_ context.Context, code string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Code == code {
			cp := *role
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("role not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListRoles(_ context.Context) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		cp := *role
		out = append(out, &cp)
	}
	return out, nil
}

// SaveAssignment is idempotent: re-assigning keeps the original AssignedAt.
func (s *InMemoryStore) SaveAssignment(_ context.Context, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.assignments[a.UserID]
	if !ok {
		held = make(map[id.RoleID]Assignment)
		s.assignments[a.UserID] = held
	}
	if _, exists := held[a.RoleID]; exists {
		return nil
	}
	held[a.RoleID] = a
	return nil
}

func (s *InMemoryStore) DeleteAssignment(_ context.Context, userID id.UserID, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.assignments[userID]
	if !ok {
		return fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	if _, exists := held[roleID]; !exists {
		return fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	delete(held, roleID)
	return nil
}

func (s *InMemoryStore) RolesForUser(_ context.Context, userID id.UserID) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.assignments[userID]
	out := make([]*Role, 0, len(held))
	for roleID := range held {
		if role, ok := s.roles[roleID]; ok {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}
