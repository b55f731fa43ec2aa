package tokenhash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("some-refresh-token")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, h.Compare(hash, "some-refresh-token"))
	assert.Error(t, h.Compare(hash, "a-different-token"))
}

func Test_Hash_LongTokensStayWithinBcryptBound(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	// A signed JWT easily exceeds bcrypt's 72-byte input limit; the SHA-256
	// pre-digest keeps it hashable.
	long := strings.Repeat("x", 512)
	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, long))
}

func Test_Hash_NotDeterministic(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("token")
	require.NoError(t, err)
	second, err := h.Hash("token")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func Test_Digest_Deterministic(t *testing.T) {
	assert.Equal(t, Digest("token"), Digest("token"))
	assert.NotEqual(t, Digest("token"), Digest("other"))
	assert.NotContains(t, Digest("token"), "=")
}

func Test_NewHasher_ClampsInvalidCost(t *testing.T) {
	h := NewHasher(99)
	hash, err := h.Hash("token")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
