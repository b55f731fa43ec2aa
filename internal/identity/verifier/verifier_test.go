package verifier

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokengate/internal/identity"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/sentinel"
)

const testAudience = "tokengate-mobile-client"

type staticKeySource struct {
	keys map[string]*rsa.PublicKey
	err  error
}

func (s *staticKeySource) Get(_ context.Context, provider identity.Provider, keyID string) (*rsa.PublicKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	key, ok := s.keys[string(provider)+"_"+keyID]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", keyID, sentinel.ErrNotFound)
	}
	return key, nil
}

type tokenOpts struct {
	kid      string
	issuer   string
	audience string
	subject  string
	email    string
	nonce    string
	expires  time.Time
	omitKid  bool
}

func signToken(t *testing.T, key *rsa.PrivateKey, opts tokenOpts) string {
	t.Helper()
	if opts.issuer == "" {
		opts.issuer = identity.ProviderGoogle.Issuer()
	}
	if opts.audience == "" {
		opts.audience = testAudience
	}
	if opts.subject == "" {
		opts.subject = "ext-user-1"
	}
	if opts.expires.IsZero() {
		opts.expires = time.Now().Add(time.Hour)
	}
	claims := idTokenClaims{
		Email: opts.email,
		Nonce: opts.nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    opts.issuer,
			Subject:   opts.subject,
			Audience:  jwt.ClaimStrings{opts.audience},
			ExpiresAt: jwt.NewNumericDate(opts.expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if !opts.omitKid {
		token.Header["kid"] = opts.kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	source := &staticKeySource{keys: map[string]*rsa.PublicKey{
		"google_k1": &key.PublicKey,
		"apple_k1":  &key.PublicKey,
	}}
	v := New(source, map[identity.Provider]string{
		identity.ProviderGoogle: testAudience,
		identity.ProviderApple:  testAudience,
	})
	return v, key
}

func TestVerify_ValidToken(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k1", subject: "sub-123", email: "user@example.com"})

	claims, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.NoError(t, err)
	assert.Equal(t, "sub-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestVerify_TamperedSignature(t *testing.T) {
	v, _ := newVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw := signToken(t, other, tokenOpts{kid: "k1"})

	_, err = v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "INVALID_GOOGLE_TOKEN", dErrors.TagOf(err))
}

func TestVerify_ExpiredToken(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k1", expires: time.Now().Add(-time.Minute)})

	_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "TOKEN_EXPIRED", dErrors.TagOf(err))
}

func TestVerify_WrongIssuer(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k1", issuer: "https://evil.example.com"})

	_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerify_WrongAudience(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k1", audience: "someone-elses-client"})

	_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerify_MissingKeyID(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{omitKid: true})

	_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.Contains(t, dErrors.SafeMessage(err), "missing key id")
}

func TestVerify_UnknownKeyID(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k-rotated-away"})

	_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "INVALID_GOOGLE_TOKEN", dErrors.TagOf(err))
	assert.Contains(t, dErrors.SafeMessage(err), "k-rotated-away")
}

func TestVerify_KeyFetchFailure(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	source := &staticKeySource{err: fmt.Errorf("dial tcp: %w", sentinel.ErrUnavailable)}
	v := New(source, map[identity.Provider]string{identity.ProviderGoogle: testAudience})
	raw := signToken(t, key, tokenOpts{kid: "k1"})

	_, err = v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestVerify_AppleTokensCarryAppleTag(t *testing.T) {
	v, _ := newVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw := signToken(t, other, tokenOpts{kid: "k1", issuer: identity.ProviderApple.Issuer()})

	_, err = v.Verify(context.Background(), identity.ProviderApple, raw, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_APPLE_TOKEN", dErrors.TagOf(err))
}

func TestVerify_UnsupportedProvider(t *testing.T) {
	v, key := newVerifier(t)
	raw := signToken(t, key, tokenOpts{kid: "k1"})

	_, err := v.Verify(context.Background(), identity.Provider("github"), raw, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestVerify_NonceChecks(t *testing.T) {
	v, key := newVerifier(t)
	const nonce = "random-client-nonce"
	digest := sha256.Sum256([]byte(nonce))
	hashedNonce := base64.RawURLEncoding.EncodeToString(digest[:])

	t.Run("verbatim match passes", func(t *testing.T) {
		raw := signToken(t, key, tokenOpts{kid: "k1", nonce: nonce})
		_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, nonce)
		assert.NoError(t, err)
	})

	t.Run("hashed match passes", func(t *testing.T) {
		raw := signToken(t, key, tokenOpts{kid: "k1", nonce: hashedNonce})
		_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, nonce)
		assert.NoError(t, err)
	})

	t.Run("mismatch fails", func(t *testing.T) {
		raw := signToken(t, key, tokenOpts{kid: "k1", nonce: "different"})
		_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, nonce)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expected nonce but token carries none", func(t *testing.T) {
		raw := signToken(t, key, tokenOpts{kid: "k1"})
		_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, nonce)
		require.Error(t, err)
	})

	t.Run("no expected nonce skips check", func(t *testing.T) {
		raw := signToken(t, key, tokenOpts{kid: "k1", nonce: "anything"})
		_, err := v.Verify(context.Background(), identity.ProviderGoogle, raw, "")
		assert.NoError(t, err)
	})
}
