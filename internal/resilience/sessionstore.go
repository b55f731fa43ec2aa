package resilience

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/session/models"
	"tokengate/internal/session/store"
)

// GuardedSessionStore wraps a session store with the session_store breaker.
type GuardedSessionStore struct {
	inner  store.Store
	guards *Guards
}

func NewGuardedSessionStore(inner store.Store, guards *Guards) *GuardedSessionStore {
	return &GuardedSessionStore{inner: inner, guards: guards}
}

func (s *GuardedSessionStore) Create(ctx context.Context, session *models.Session) error {
	return s.guards.call(BreakerSessionStore, func() error {
		return s.inner.Create(ctx, session)
	})
}

func (s *GuardedSessionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var found *models.Session
	err := s.guards.call(BreakerSessionStore, func() error {
		var err error
		found, err = s.inner.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *GuardedSessionStore) FindByDigest(ctx context.Context, digest string) (*models.Session, error) {
	var found *models.Session
	err := s.guards.call(BreakerSessionStore, func() error {
		var err error
		found, err = s.inner.FindByDigest(ctx, digest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *GuardedSessionStore) ReplaceRefresh(ctx context.Context, sessionID uuid.UUID, oldDigest, newHash, newDigest string, expiresAt time.Time) error {
	return s.guards.call(BreakerSessionStore, func() error {
		return s.inner.ReplaceRefresh(ctx, sessionID, oldDigest, newHash, newDigest, expiresAt)
	})
}

func (s *GuardedSessionStore) Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	return s.guards.call(BreakerSessionStore, func() error {
		return s.inner.Revoke(ctx, sessionID, at)
	})
}

func (s *GuardedSessionStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int, error) {
	var revoked int
	err := s.guards.call(BreakerSessionStore, func() error {
		var err error
		revoked, err = s.inner.RevokeAllForUser(ctx, userID, at)
		return err
	})
	return revoked, err
}

func (s *GuardedSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var deleted int
	err := s.guards.call(BreakerSessionStore, func() error {
		var err error
		deleted, err = s.inner.DeleteExpired(ctx, now)
		return err
	})
	return deleted, err
}

var _ store.Store = (*GuardedSessionStore)(nil)
