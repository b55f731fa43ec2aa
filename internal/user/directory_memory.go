package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

// MemoryDirectory keeps accounts in memory for tests and local development.
type MemoryDirectory struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*User
	byExternal map[string]uuid.UUID
	now        func() time.Time
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       make(map[uuid.UUID]*User),
		byExternal: make(map[string]uuid.UUID),
		now:        time.Now,
	}
}

func externalKey(provider identity.Provider, providerID string) string {
	return string(provider) + ":" + providerID
}

func (d *MemoryDirectory) GetOrCreate(_ context.Context, provider identity.Provider, providerID, email string) (*User, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.byExternal[externalKey(provider, providerID)]; ok {
		existing := d.byID[id]
		if email != "" && existing.Email != email {
			existing.Email = email
			existing.UpdatedAt = d.now().UTC()
		}
		copied := *existing
		return &copied, false, nil
	}

	now := d.now().UTC()
	created := &User{
		ID:         uuid.New(),
		Provider:   provider,
		ProviderID: providerID,
		Email:      email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	d.byID[created.ID] = created
	d.byExternal[externalKey(provider, providerID)] = created.ID
	copied := *created
	return &copied, true, nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	existing, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	copied := *existing
	return &copied, nil
}
