// Package user maintains the directory of accounts known to the gateway,
// keyed by the external identity that first signed them in.
package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/identity"
)

// User is an account provisioned from a verified external identity. The
// (Provider, ProviderID) pair is the stable external key; ID is the
// gateway's own identifier and what session tokens carry.
type User struct {
	ID         uuid.UUID         `json:"id"`
	Provider   identity.Provider `json:"provider"`
	ProviderID string            `json:"provider_id"`
	Email      string            `json:"email,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Profile is the client-facing view of an account.
type Profile struct {
	UserID    uuid.UUID         `json:"user_id"`
	Email     string            `json:"email,omitempty"`
	Provider  identity.Provider `json:"provider"`
	CreatedAt time.Time         `json:"created_at"`
}

// Directory resolves verified external identities to accounts.
type Directory interface {
	// GetOrCreate returns the account for (provider, providerID), creating
	// it on first sign-in; created reports whether this call provisioned
	// it. A changed email on an existing account is persisted.
	GetOrCreate(ctx context.Context, provider identity.Provider, providerID, email string) (u *User, created bool, err error)

	// FindByID returns the account with the gateway identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// ProfileOf projects an account into its client-facing view.
func ProfileOf(u *User) *Profile {
	return &Profile{
		UserID:    u.ID,
		Email:     u.Email,
		Provider:  u.Provider,
		CreatedAt: u.CreatedAt,
	}
}
