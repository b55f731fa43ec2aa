package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/session/models"
	"tokengate/pkg/platform/sentinel"
)

// MemoryStore keeps sessions in memory for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
	byDigest map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.Session),
		byDigest: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists: %w", session.ID, sentinel.ErrConflict)
	}
	copied := *session
	s.sessions[session.ID] = &copied
	s.byDigest[session.RefreshDigest] = session.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) FindByDigest(_ context.Context, digest string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDigest[digest]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) ReplaceRefresh(_ context.Context, sessionID uuid.UUID, oldDigest, newHash, newDigest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if session.RefreshDigest != oldDigest {
		return fmt.Errorf("refresh credential changed concurrently: %w", sentinel.ErrConflict)
	}
	// The consumed digest stays indexed so a replay of it is recognizable;
	// only the one before that falls off.
	if session.PrevDigest != "" {
		delete(s.byDigest, session.PrevDigest)
	}
	session.PrevDigest = oldDigest
	session.RefreshHash = newHash
	session.RefreshDigest = newDigest
	session.ExpiresAt = expiresAt
	s.byDigest[newDigest] = sessionID
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, sessionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if session.Revoked {
		return nil
	}
	session.Revoked = true
	session.RevokedAt = &at
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID uuid.UUID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, session := range s.sessions {
		if session.UserID != userID || session.Revoked {
			continue
		}
		session.Revoked = true
		session.RevokedAt = &at
		revoked++
	}
	return revoked, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, session := range s.sessions {
		if session.ExpiresAt.IsZero() || !session.ExpiresAt.Before(now) {
			continue
		}
		delete(s.byDigest, session.RefreshDigest)
		if session.PrevDigest != "" {
			delete(s.byDigest, session.PrevDigest)
		}
		delete(s.sessions, id)
		deleted++
	}
	return deleted, nil
}
