// Package tokenhash hashes refresh tokens for storage. Raw refresh tokens
// are never persisted; the store keeps a bcrypt hash for validation and a
// deterministic digest for lookup.
package tokenhash

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and verifies stored refresh token hashes. The token is
// pre-digested with SHA-256 so its length stays within bcrypt's input bound.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash to store for a raw refresh token.
func (h *Hasher) Hash(raw string) (string, error) {
	sum := sha256.Sum256([]byte(raw))
	hashed, err := bcrypt.GenerateFromPassword(sum[:], h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare reports whether raw matches the stored hash.
func (h *Hasher) Compare(storedHash, raw string) error {
	sum := sha256.Sum256([]byte(raw))
	return bcrypt.CompareHashAndPassword([]byte(storedHash), sum[:])
}

// Digest returns the deterministic lookup index for a raw refresh token.
// Unlike the bcrypt hash it is stable across calls, so the store can find
// the session a presented token belongs to without scanning.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
