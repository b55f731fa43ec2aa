// Package verifier decodes and cryptographically verifies externally-issued
// identity tokens, resolving signing keys through the key cache.
package verifier

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"tokengate/internal/identity"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/sentinel"
)

// KeySource resolves a provider's verification key by key id.
type KeySource interface {
	Get(ctx context.Context, provider identity.Provider, keyID string) (*rsa.PublicKey, error)
}

// ExternalClaims are the claims extracted from a successfully verified
// external identity token. Ephemeral; never persisted.
type ExternalClaims struct {
	Subject string
	Email   string
	Nonce   string
}

type idTokenClaims struct {
	Email string `json:"email,omitempty"`
	Nonce string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// Verifier verifies external identity tokens against provider-published
// keys. The audience per provider is the server-configured client
// identifier; a client-supplied audience is never trusted.
type Verifier struct {
	keys      KeySource
	audiences map[identity.Provider]string
}

// New constructs a verifier. audiences maps each accepted provider to the
// client identifier expected in the token's aud claim.
func New(keys KeySource, audiences map[identity.Provider]string) *Verifier {
	return &Verifier{keys: keys, audiences: audiences}
}

// Verify decodes rawToken, verifies its signature with the provider's
// published key, and checks issuer, audience, and expiry. When
// expectedNonce is non-empty the token's nonce claim must equal it verbatim
// or equal the base64url-no-pad SHA-256 digest of it; an empty expectedNonce
// skips the nonce check entirely.
func (v *Verifier) Verify(ctx context.Context, provider identity.Provider, rawToken, expectedNonce string) (*ExternalClaims, error) {
	if !provider.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported identity provider")
	}
	audience, ok := v.audiences[provider]
	if !ok || audience == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "no client identifier configured for provider")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(provider.Issuer()),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)

	var claims idTokenClaims
	var kid string
	token, err := parser.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ = t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		return v.keys.Get(ctx, provider, kid)
	})
	if err != nil {
		return nil, v.translateError(provider, kid, err)
	}
	if !token.Valid {
		return nil, invalidTokenError(provider, "token is invalid")
	}

	if expectedNonce != "" {
		if err := checkNonce(provider, claims.Nonce, expectedNonce); err != nil {
			return nil, err
		}
	}

	return &ExternalClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Nonce:   claims.Nonce,
	}, nil
}

var errMissingKeyID = errors.New("token header missing key id")

// checkNonce accepts the claim either verbatim or as the base64url-no-pad
// SHA-256 digest of the value the caller supplied.
func checkNonce(provider identity.Provider, claim, expected string) error {
	if claim == "" {
		return invalidTokenError(provider, "token carries no nonce but one was expected")
	}
	if claim == expected {
		return nil
	}
	digest := sha256.Sum256([]byte(expected))
	if claim == base64.RawURLEncoding.EncodeToString(digest[:]) {
		return nil
	}
	return invalidTokenError(provider, "nonce mismatch")
}

// wireTag returns the wire-level error code surfaced for a rejected token
// from this provider.
func wireTag(provider identity.Provider) string {
	switch provider {
	case identity.ProviderApple:
		return "INVALID_APPLE_TOKEN"
	default:
		return "INVALID_GOOGLE_TOKEN"
	}
}

func invalidTokenError(provider identity.Provider, message string) error {
	return dErrors.NewTagged(dErrors.CodeUnauthorized, wireTag(provider), message)
}

// translateError maps parser and key-resolution failures onto distinct
// domain errors. Downstream fetch failures stay CodeUnavailable so the
// resilience layer and transport treat them as dependency failures rather
// than client mistakes.
func (v *Verifier) translateError(provider identity.Provider, kid string, err error) error {
	switch {
	case errors.Is(err, errMissingKeyID):
		return dErrors.WrapTagged(err, dErrors.CodeUnauthorized, wireTag(provider), "token header missing key id")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.WrapTagged(err, dErrors.CodeUnauthorized, wireTag(provider),
			fmt.Sprintf("no verification key published for key id %q", kid))
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unavailable")
	case errors.Is(err, jwt.ErrTokenExpired):
		return dErrors.WrapTagged(err, dErrors.CodeUnauthorized, "TOKEN_EXPIRED", "identity token has expired")
	default:
		return dErrors.WrapTagged(err, dErrors.CodeUnauthorized, wireTag(provider), "identity token could not be verified")
	}
}
