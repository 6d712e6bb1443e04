package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// MemoryStore is an in-process Repository for tests and local runs.
// Values are deep-copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	users    map[string]domain.User
	now      func() time.Time
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*domain.Session{},
		users:    map[string]domain.User{},
		now:      time.Now,
	}
}

func cloneSession(s *domain.Session) (*domain.Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("copy session: %w", err)
	}
	var out domain.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy session: %w", err)
	}
	if out.Analytics.EventCounts == nil {
		out.Analytics.EventCounts = map[string]int{}
	}
	return &out, nil
}

// GetSession returns a copy of the user's session, or nil, nil.
func (m *MemoryStore) GetSession(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return cloneSession(s)
}

// GetOrCreateSession returns the session, creating it when absent.
func (m *MemoryStore) GetOrCreateSession(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = domain.NewSession(userID, m.now().UTC())
		m.sessions[userID] = s
	}
	return cloneSession(s)
}

// SaveSession stores a copy of sess.
func (m *MemoryStore) SaveSession(_ context.Context, sess *domain.Session) error {
	c, err := cloneSession(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[sess.UserID] = c
	m.mu.Unlock()
	return nil
}

// DeleteSession removes the user's session.
func (m *MemoryStore) DeleteSession(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

// MarkCompleted flags the session completed, creating it if needed.
func (m *MemoryStore) MarkCompleted(_ context.Context, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = domain.NewSession(userID, now)
		m.sessions[userID] = s
	}
	s.MarkCompleted(now)
	s.UpdatedAt = now
	return nil
}

// CleanupIdleSessions deletes sessions not updated within olderThan.
func (m *MemoryStore) CleanupIdleSessions(_ context.Context, olderThan time.Duration) (int64, error) {
	threshold := m.now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// GetUser returns a copy of the user, or nil, nil.
func (m *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// UpsertUser creates or updates a user. Empty profile fields keep stored values.
func (m *MemoryStore) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.UserID]
	if !ok {
		m.users[user.UserID] = *user
		return nil
	}
	if user.FullName != "" {
		existing.FullName = user.FullName
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	if user.Phone != "" {
		existing.Phone = user.Phone
	}
	existing.LastSeenAt = user.LastSeenAt
	existing.UpdatedAt = user.UpdatedAt
	m.users[user.UserID] = existing
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (m *MemoryStore) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastSeenAt = lastSeen
		u.UpdatedAt = m.now()
		m.users[userID] = u
	}
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
