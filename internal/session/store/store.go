// Package store persists refresh-token sessions.
//
// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested session does not exist
// - Return ErrConflict when a compare-and-swap loses a race
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/session/models"
)

// Store is the session persistence boundary.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, session *models.Session) error

	// FindByID returns the session with the given id.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// FindByDigest returns the session whose current refresh token has the
	// given digest.
	FindByDigest(ctx context.Context, digest string) (*models.Session, error)

	// ReplaceRefresh atomically swaps the session's refresh credential. The
	// swap only applies while the session's current digest still equals
	// oldDigest; a concurrent rotation wins the race and this call returns
	// ErrConflict. The old digest stops resolving the session immediately.
	ReplaceRefresh(ctx context.Context, sessionID uuid.UUID, oldDigest, newHash, newDigest string, expiresAt time.Time) error

	// Revoke marks the session revoked. Revoking an already-revoked session
	// is a no-op, not an error.
	Revoke(ctx context.Context, sessionID uuid.UUID, at time.Time) error

	// RevokeAllForUser revokes every live session belonging to the user and
	// returns how many were revoked.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int, error)

	// DeleteExpired removes sessions whose expiry has passed and returns how
	// many were deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
