// Package service implements refresh-token session lifecycle: creation at
// sign-in, single-use rotation, and revocation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/identity"
	"tokengate/internal/session/models"
	"tokengate/internal/session/store"
	"tokengate/internal/session/token"
	"tokengate/internal/session/tokenhash"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/sentinel"
)

const invalidRefreshTag = "INVALID_REFRESH_TOKEN"

// invalidRefresh is the single rejection surfaced for every refresh failure
// mode. Unknown, revoked, expired, and replayed tokens are deliberately
// indistinguishable to the caller.
func invalidRefresh(cause error) error {
	if cause == nil {
		return dErrors.NewTagged(dErrors.CodeUnauthorized, invalidRefreshTag, "invalid refresh token")
	}
	return dErrors.WrapTagged(cause, dErrors.CodeUnauthorized, invalidRefreshTag, "invalid refresh token")
}

// Issuer mints the gateway's own tokens.
type Issuer interface {
	IssueAccess(userID uuid.UUID, email string, provider identity.Provider) (string, error)
	IssueRefresh(userID uuid.UUID) (string, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// TokenPair is what a successful sign-in or refresh hands back to transport.
// ExpiresAt is the access token's expiry.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service manages refresh-token sessions on top of a Store.
type Service struct {
	store  store.Store
	hasher *tokenhash.Hasher
	issuer Issuer
	now    func() time.Time
}

func New(sessionStore store.Store, hasher *tokenhash.Hasher, issuer Issuer) *Service {
	return &Service{
		store:  sessionStore,
		hasher: hasher,
		issuer: issuer,
		now:    time.Now,
	}
}

var _ Issuer = (*token.Issuer)(nil)

// Create opens a new session for the user and returns the token pair. Each
// sign-in gets its own session; existing sessions on other devices are
// untouched.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, provider identity.Provider, email string, device models.Device) (*models.Session, *TokenPair, error) {
	access, err := s.issuer.IssueAccess(userID, email, provider)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash refresh token")
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:            uuid.New(),
		UserID:        userID,
		Provider:      provider,
		Email:         email,
		RefreshHash:   hash,
		RefreshDigest: tokenhash.Digest(refresh),
		Device:        device,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.issuer.RefreshTTL()),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	return session, &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.issuer.AccessTTL()),
	}, nil
}

// Rotate exchanges a valid refresh token for a fresh token pair, replacing
// the session's refresh credential. The presented token stops working the
// moment the swap lands; presenting it again afterwards is a replay and
// fails like any other invalid token.
func (s *Service) Rotate(ctx context.Context, rawRefresh string) (*models.Session, *TokenPair, error) {
	digest := tokenhash.Digest(rawRefresh)
	session, err := s.store.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, invalidRefresh(err)
		}
		return nil, nil, fmt.Errorf("look up session: %w", err)
	}
	if digest == session.PrevDigest {
		return nil, nil, invalidRefresh(fmt.Errorf("refresh token presented again after rotation: %w", sentinel.ErrAlreadyUsed))
	}

	now := s.now().UTC()
	if err := session.ValidAt(now); err != nil {
		return nil, nil, invalidRefresh(err)
	}
	if err := s.hasher.Compare(session.RefreshHash, rawRefresh); err != nil {
		return nil, nil, invalidRefresh(err)
	}

	access, err := s.issuer.IssueAccess(session.UserID, session.Email, session.Provider)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := s.issuer.IssueRefresh(session.UserID)
	if err != nil {
		return nil, nil, err
	}
	hash, err := s.hasher.Hash(refresh)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash refresh token")
	}

	newExpiry := now.Add(s.issuer.RefreshTTL())
	err = s.store.ReplaceRefresh(ctx, session.ID, session.RefreshDigest, hash, tokenhash.Digest(refresh), newExpiry)
	if err != nil {
		// Losing the swap means another request already rotated with this
		// token; treat the loser as a replay.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, invalidRefresh(err)
		}
		return nil, nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	session.RefreshHash = hash
	session.RefreshDigest = tokenhash.Digest(refresh)
	session.ExpiresAt = newExpiry
	return session, &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.issuer.AccessTTL()),
	}, nil
}

// Revoke ends the session the refresh token belongs to. It reports success
// whether or not the token resolved to a live session, so the endpoint never
// doubles as a validity oracle.
func (s *Service) Revoke(ctx context.Context, rawRefresh string) error {
	session, err := s.store.FindByDigest(ctx, tokenhash.Digest(rawRefresh))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up session: %w", err)
	}
	if err := s.hasher.Compare(session.RefreshHash, rawRefresh); err != nil {
		return nil
	}
	if err := s.store.Revoke(ctx, session.ID, s.now().UTC()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser ends every live session the user has, across devices.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	revoked, err := s.store.RevokeAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return revoked, fmt.Errorf("revoke user sessions: %w", err)
	}
	return revoked, nil
}
