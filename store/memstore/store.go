// Package memstore is an in-process IdentityStore for tests, demos and the
// seed-less serve mode.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/oroscan/oroauth"
)

// Store keeps accounts in memory. Lookups are case-insensitive.
type Store struct {
	mu     sync.RWMutex
	users  map[string]oroauth.UserRecord
	nextID int
}

// New returns an empty store.
func New() *Store {
	return &Store{users: make(map[string]oroauth.UserRecord)}
}

// FindByEmail matches email against stored emails, ignoring case.
func (s *Store) FindByEmail(_ context.Context, email string) (oroauth.UserRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return oroauth.UserRecord{}, oroauth.ErrUserNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDs() {
		u := s.users[id]
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return oroauth.UserRecord{}, oroauth.ErrUserNotFound
}

// FindByUsernameOrEmail prefers a username match, then falls back to email.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, text string) (oroauth.UserRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return oroauth.UserRecord{}, oroauth.ErrUserNotFound
	}

	s.mu.RLock()
	for _, id := range s.sortedIDs() {
		u := s.users[id]
		if strings.EqualFold(u.Username, text) {
			s.mu.RUnlock()
			return u, nil
		}
	}
	s.mu.RUnlock()

	return s.FindByEmail(ctx, text)
}

// UpsertUser inserts user, or replaces the record with the same username.
// An empty ID is assigned.
func (s *Store) UpsertUser(_ context.Context, user oroauth.UserRecord) (oroauth.UserRecord, error) {
	if strings.TrimSpace(user.Username) == "" {
		return oroauth.UserRecord{}, errors.New("username is required")
	}
	if user.PasswordHash == "" {
		return oroauth.UserRecord{}, errors.New("password hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matchID := ""
	for id, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			matchID = id
			break
		}
	}
	if user.Email != "" {
		for id, existing := range s.users {
			if id != matchID && strings.EqualFold(existing.Email, user.Email) {
				return oroauth.UserRecord{}, errors.New("email already in use")
			}
		}
	}

	switch {
	case matchID != "":
		user.ID = matchID
	case user.ID == "":
		s.nextID++
		user.ID = strconv.Itoa(s.nextID)
	}
	s.users[user.ID] = user
	return user, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *Store) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return oroauth.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	s.users[userID] = u
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// sortedIDs gives lookups a deterministic order. Callers hold s.mu.
func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
