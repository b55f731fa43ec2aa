package models

import (
	"time"

	"github.com/google/uuid"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

// Device describes the client installation a session was created from.
type Device struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// Session is a refresh-token session. The raw refresh token is never stored:
// RefreshHash is a bcrypt hash used to validate a presented token, and
// RefreshDigest is its deterministic SHA-256 index used for lookup. Provider
// and Email are denormalized so a refresh can mint an access token without a
// directory read.
type Session struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	Provider      identity.Provider `json:"provider"`
	Email         string            `json:"email,omitempty"`
	RefreshHash   string            `json:"refresh_hash"`
	RefreshDigest string            `json:"refresh_digest"`
	// PrevDigest indexes the refresh token consumed by the most recent
	// rotation. It never validates again; keeping it lets the store tell
	// reuse-after-rotation apart from a token it has never seen.
	PrevDigest    string            `json:"prev_digest,omitempty"`
	Device        Device            `json:"device"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Revoked       bool              `json:"revoked"`
	RevokedAt     *time.Time        `json:"revoked_at,omitempty"`
}

// ValidAt reports whether the session can still be refreshed at the given
// instant, returning a sentinel error describing why not.
func (s *Session) ValidAt(now time.Time) error {
	if s.Revoked {
		return sentinel.ErrRevoked
	}
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
		return sentinel.ErrExpired
	}
	return nil
}
