package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	id "wardgate/pkg/domain"
	"wardgate/pkg/sentinel"
)

// InMemoryStore keeps users in memory for tests and dev mode.
type InMemoryStore struct {
	mu         sync.RWMutex
	users      map[id.UserID]*User
	byUsername map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:      make(map[id.UserID]*User),
		byUsername: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) SaveUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Username)
	if existing, ok := s.byUsername[key]; ok && existing != user.ID {
		return fmt.Errorf("username %q taken: %w", user.Username, sentinel.ErrConflict)
	}
	cp := *user
	s.users[user.ID] = &cp
	s.byUsername[key] = user.ID
	return nil
}

func (s *InMemoryStore) FindUser(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byUsername[strings.ToLower(username)]; ok {
		if u, ok := s.users[userID]; ok {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListUsers(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
