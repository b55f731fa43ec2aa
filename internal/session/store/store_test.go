package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokengate/internal/identity"
	"tokengate/internal/session/models"
	"tokengate/pkg/platform/sentinel"
)

func newTestSession(userID uuid.UUID, digest string) *models.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Session{
		ID:            uuid.New(),
		UserID:        userID,
		Provider:      identity.ProviderGoogle,
		Email:         "user@example.com",
		RefreshHash:   "$2a$10$fakehashforstorertests",
		RefreshDigest: digest,
		Device: models.Device{
			DeviceID:   "device-1",
			DeviceType: "phone",
			Platform:   "ios",
			AppVersion: "1.4.2",
		},
		CreatedAt: now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and find by id", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-a")
		require.NoError(t, s.Create(ctx, session))

		got, err := s.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.UserID, got.UserID)
		assert.Equal(t, identity.ProviderGoogle, got.Provider)
		assert.Equal(t, "user@example.com", got.Email)
		assert.Equal(t, "device-1", got.Device.DeviceID)
	})

	t.Run("find by digest", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-b")
		require.NoError(t, s.Create(ctx, session))

		got, err := s.FindByDigest(ctx, "digest-b")
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)

		_, err = s.FindByDigest(ctx, "nonexistent")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("replace refresh rotates the digest index", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-old")
		require.NoError(t, s.Create(ctx, session))

		newExpiry := time.Now().Add(60 * 24 * time.Hour).UTC().Truncate(time.Second)
		err := s.ReplaceRefresh(ctx, session.ID, "digest-old", "new-hash", "digest-new", newExpiry)
		require.NoError(t, err)

		got, err := s.FindByDigest(ctx, "digest-new")
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.RefreshHash)
		assert.Equal(t, newExpiry, got.ExpiresAt.UTC().Truncate(time.Second))

		// The consumed digest still resolves, marked as previous, so a
		// replay of it is recognizable.
		replayed, err := s.FindByDigest(ctx, "digest-old")
		require.NoError(t, err)
		assert.Equal(t, session.ID, replayed.ID)
		assert.Equal(t, "digest-old", replayed.PrevDigest)
		assert.Equal(t, "digest-new", replayed.RefreshDigest)
	})

	t.Run("only the most recent consumed digest is kept", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-1")
		require.NoError(t, s.Create(ctx, session))

		expiry := time.Now().Add(time.Hour)
		require.NoError(t, s.ReplaceRefresh(ctx, session.ID, "digest-1", "h2", "digest-2", expiry))
		require.NoError(t, s.ReplaceRefresh(ctx, session.ID, "digest-2", "h3", "digest-3", expiry))

		_, err := s.FindByDigest(ctx, "digest-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.FindByDigest(ctx, "digest-2")
		assert.NoError(t, err)
	})

	t.Run("replace refresh loses the race", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-race")
		require.NoError(t, s.Create(ctx, session))

		newExpiry := time.Now().Add(time.Hour)
		require.NoError(t, s.ReplaceRefresh(ctx, session.ID, "digest-race", "hash-1", "digest-winner", newExpiry))

		err := s.ReplaceRefresh(ctx, session.ID, "digest-race", "hash-2", "digest-loser", newExpiry)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		_, err = s.FindByDigest(ctx, "digest-loser")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		s := newStore(t)
		session := newTestSession(uuid.New(), "digest-revoke")
		require.NoError(t, s.Create(ctx, session))

		at := time.Now().UTC()
		require.NoError(t, s.Revoke(ctx, session.ID, at))
		require.NoError(t, s.Revoke(ctx, session.ID, at.Add(time.Minute)))

		got, err := s.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		assert.WithinDuration(t, at, *got.RevokedAt, time.Second)
	})

	t.Run("revoke unknown session", func(t *testing.T) {
		s := newStore(t)
		err := s.Revoke(ctx, uuid.New(), time.Now())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("revoke all for user", func(t *testing.T) {
		s := newStore(t)
		userID := uuid.New()
		first := newTestSession(userID, "digest-u1")
		second := newTestSession(userID, "digest-u2")
		other := newTestSession(uuid.New(), "digest-u3")
		require.NoError(t, s.Create(ctx, first))
		require.NoError(t, s.Create(ctx, second))
		require.NoError(t, s.Create(ctx, other))

		revoked, err := s.RevokeAllForUser(ctx, userID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 2, revoked)

		got, err := s.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, got.Revoked)

		// A second pass finds nothing live.
		revoked, err = s.RevokeAllForUser(ctx, userID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 0, revoked)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		live := newTestSession(uuid.New(), "digest-live")
		stale := newTestSession(uuid.New(), "digest-stale")
		stale.ExpiresAt = time.Now().Add(time.Minute)
		require.NoError(t, s.Create(ctx, live))
		require.NoError(t, s.Create(ctx, stale))

		deleted, err := s.DeleteExpired(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = s.FindByID(ctx, stale.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.FindByID(ctx, live.ID)
		assert.NoError(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestRedisStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client)
	})
}

func TestMemoryStore_CreateDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	session := newTestSession(uuid.New(), "digest-dup")
	require.NoError(t, s.Create(context.Background(), session))
	err := s.Create(context.Background(), session)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}
