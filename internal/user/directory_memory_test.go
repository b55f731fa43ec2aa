package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

func Test_GetOrCreate_ProvisionsOnFirstSignIn(t *testing.T) {
	d := NewMemoryDirectory()

	created, isNew, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-1", "user@example.com")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, identity.ProviderGoogle, created.Provider)
	assert.Equal(t, "ext-1", created.ProviderID)
	assert.Equal(t, "user@example.com", created.Email)
}

func Test_GetOrCreate_ReturnsExistingAccount(t *testing.T) {
	d := NewMemoryDirectory()

	created, _, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-1", "user@example.com")
	require.NoError(t, err)

	again, isNew, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-1", "user@example.com")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)
}

func Test_GetOrCreate_SameExternalIDDifferentProvider(t *testing.T) {
	d := NewMemoryDirectory()

	google, _, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-1", "")
	require.NoError(t, err)
	apple, _, err := d.GetOrCreate(context.Background(), identity.ProviderApple, "ext-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, google.ID, apple.ID)
}

func Test_GetOrCreate_UpdatesChangedEmail(t *testing.T) {
	d := NewMemoryDirectory()

	created, _, err := d.GetOrCreate(context.Background(), identity.ProviderApple, "ext-2", "old@example.com")
	require.NoError(t, err)

	updated, _, err := d.GetOrCreate(context.Background(), identity.ProviderApple, "ext-2", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "new@example.com", updated.Email)

	// An empty email from the provider does not clobber the stored one.
	kept, _, err := d.GetOrCreate(context.Background(), identity.ProviderApple, "ext-2", "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", kept.Email)
}

func Test_FindByID(t *testing.T) {
	d := NewMemoryDirectory()

	created, _, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-3", "user@example.com")
	require.NoError(t, err)

	found, err := d.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = d.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func Test_ProfileOf(t *testing.T) {
	d := NewMemoryDirectory()
	created, _, err := d.GetOrCreate(context.Background(), identity.ProviderGoogle, "ext-4", "user@example.com")
	require.NoError(t, err)

	profile := ProfileOf(created)
	assert.Equal(t, created.ID, profile.UserID)
	assert.Equal(t, created.Email, profile.Email)
	assert.Equal(t, created.Provider, profile.Provider)
}
