package resilience

import (
	"context"

	"github.com/google/uuid"

	"tokengate/internal/identity"
	"tokengate/internal/user"
)

// GuardedDirectory wraps the user directory with the user_directory breaker.
type GuardedDirectory struct {
	inner  user.Directory
	guards *Guards
}

func NewGuardedDirectory(inner user.Directory, guards *Guards) *GuardedDirectory {
	return &GuardedDirectory{inner: inner, guards: guards}
}

func (d *GuardedDirectory) GetOrCreate(ctx context.Context, provider identity.Provider, providerID, email string) (*user.User, bool, error) {
	var u *user.User
	var created bool
	err := d.guards.call(BreakerUserDirectory, func() error {
		var err error
		u, created, err = d.inner.GetOrCreate(ctx, provider, providerID, email)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return u, created, nil
}

func (d *GuardedDirectory) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u *user.User
	err := d.guards.call(BreakerUserDirectory, func() error {
		var err error
		u, err = d.inner.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
