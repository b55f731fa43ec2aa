package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tokengate/internal/session/models"
	"tokengate/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "session:id:"
	digestKeyPrefix  = "session:digest:"
	userSetKeyPrefix = "session:user:"
)

// RedisStore is the Redis-backed session store for distributed deployments
// where multiple instances share session state. Sessions are JSON records
// keyed by id, with a digest index for refresh lookup and a per-user set for
// bulk revocation. Keys expire with the session so Redis handles most of the
// expired-session cleanup itself.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id uuid.UUID) string   { return sessionKeyPrefix + id.String() }
func digestKey(digest string) string   { return digestKeyPrefix + digest }
func userSetKey(id uuid.UUID) string   { return userSetKeyPrefix + id.String() }
func ttlUntil(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	return time.Until(expiresAt)
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := ttlUntil(session.ExpiresAt)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), body, ttl)
	pipe.Set(ctx, digestKey(session.RefreshDigest), session.ID.String(), ttl)
	pipe.SAdd(ctx, userSetKey(session.UserID), session.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.getSession(ctx, sessionKey(id))
}

func (s *RedisStore) FindByDigest(ctx context.Context, digest string) (*models.Session, error) {
	idValue, err := s.client.Get(ctx, digestKey(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("look up session digest: %w", err)
	}
	id, err := uuid.Parse(idValue)
	if err != nil {
		return nil, fmt.Errorf("corrupt digest index entry: %w", err)
	}
	return s.getSession(ctx, sessionKey(id))
}

func (s *RedisStore) getSession(ctx context.Context, key string) (*models.Session, error) {
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// ReplaceRefresh swaps the refresh credential under WATCH so a concurrent
// rotation of the same session aborts with ErrConflict instead of silently
// resurrecting the old digest.
func (s *RedisStore) ReplaceRefresh(ctx context.Context, sessionID uuid.UUID, oldDigest, newHash, newDigest string, expiresAt time.Time) error {
	key := sessionKey(sessionID)

	txn := func(tx *redis.Tx) error {
		body, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		var session models.Session
		if err := json.Unmarshal(body, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if session.RefreshDigest != oldDigest {
			return fmt.Errorf("refresh credential changed concurrently: %w", sentinel.ErrConflict)
		}

		droppedDigest := session.PrevDigest
		session.PrevDigest = oldDigest
		session.RefreshHash = newHash
		session.RefreshDigest = newDigest
		session.ExpiresAt = expiresAt
		updated, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		// The consumed digest stays indexed so a replay of it is
		// recognizable; only the one before that falls off.
		ttl := ttlUntil(expiresAt)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			if droppedDigest != "" {
				pipe.Del(ctx, digestKey(droppedDigest))
			}
			pipe.Expire(ctx, digestKey(oldDigest), ttl)
			pipe.Set(ctx, digestKey(newDigest), sessionID.String(), ttl)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("refresh credential changed concurrently: %w", sentinel.ErrConflict)
	}
	return err
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	session, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Revoked {
		return nil
	}
	return s.markRevoked(ctx, session, at)
}

func (s *RedisStore) markRevoked(ctx context.Context, session *models.Session, at time.Time) error {
	session.Revoked = true
	session.RevokedAt = &at
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// The digest index entry is dropped so the revoked session's refresh
	// token stops resolving; the record itself stays until expiry for
	// replay detection.
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), body, ttlUntil(session.ExpiresAt))
	pipe.Del(ctx, digestKey(session.RefreshDigest))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int, error) {
	ids, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	revoked := 0
	for _, idValue := range ids {
		id, err := uuid.Parse(idValue)
		if err != nil {
			continue
		}
		session, err := s.FindByID(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Expired out from under the set; drop the stale member.
			s.client.SRem(ctx, userSetKey(userID), idValue)
			continue
		}
		if err != nil {
			return revoked, err
		}
		if session.Revoked {
			continue
		}
		if err := s.markRevoked(ctx, session, at); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// DeleteExpired removes session records whose expiry has passed. Redis
// already expires the keys themselves; this prunes stale user-set members
// and any record stored without a TTL.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		session, err := s.getSession(ctx, iter.Val())
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		if session.ExpiresAt.IsZero() || !session.ExpiresAt.Before(now) {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, sessionKey(session.ID))
		pipe.Del(ctx, digestKey(session.RefreshDigest))
		if session.PrevDigest != "" {
			pipe.Del(ctx, digestKey(session.PrevDigest))
		}
		pipe.SRem(ctx, userSetKey(session.UserID), session.ID.String())
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, fmt.Errorf("delete expired session: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan sessions: %w", err)
	}
	return deleted, nil
}
