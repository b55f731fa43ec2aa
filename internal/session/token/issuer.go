// Package token mints and validates the gateway's own session tokens:
// short-lived HS256 access tokens and opaque-to-clients refresh tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tokengate/internal/identity"
	dErrors "tokengate/pkg/domain-errors"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Email     string `json:"email,omitempty"`
	Provider  string `json:"provider,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a refresh token. The token itself
// is never trusted as proof of a session; the session store is.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Issuer signs and validates session tokens with a shared HMAC key.
type Issuer struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(signingKey, issuer string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *Issuer) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Issuer) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess mints a signed access token for the user.
func (s *Issuer) IssueAccess(userID uuid.UUID, email string, provider identity.Provider) (string, error) {
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:     email,
		Provider:  provider.String(),
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return signed, nil
}

// IssueRefresh mints a signed refresh token for the user. Possession alone
// never grants access: the hash stored against the session must match too.
func (s *Issuer) IssueRefresh(userID uuid.UUID) (string, error) {
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign refresh token")
	}
	return signed, nil
}

// ValidateAccess parses and verifies an access token. A refresh token
// presented here is rejected even though the signature checks out.
func (s *Issuer) ValidateAccess(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.NewTagged(dErrors.CodeUnauthorized, "TOKEN_EXPIRED", "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.TokenType != typeAccess {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token type")
	}
	return &claims, nil
}

// UserIDFromAccess validates the token and parses its subject.
func (s *Issuer) UserIDFromAccess(tokenString string) (uuid.UUID, error) {
	claims, err := s.ValidateAccess(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return id, nil
}
