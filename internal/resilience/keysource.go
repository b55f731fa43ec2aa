package resilience

import (
	"context"
	"crypto/rsa"
	"fmt"

	"tokengate/internal/identity"
	"tokengate/internal/identity/verifier"
	"tokengate/pkg/platform/sentinel"
)

// providerBreaker maps a provider to its breaker name.
func providerBreaker(provider identity.Provider) string {
	if provider == identity.ProviderApple {
		return BreakerApple
	}
	return BreakerGoogle
}

// GuardedKeySource wraps a key source with per-provider breakers and the
// simulated provider faults.
type GuardedKeySource struct {
	inner  verifier.KeySource
	guards *Guards
}

func NewGuardedKeySource(inner verifier.KeySource, guards *Guards) *GuardedKeySource {
	return &GuardedKeySource{inner: inner, guards: guards}
}

func (s *GuardedKeySource) Get(ctx context.Context, provider identity.Provider, keyID string) (*rsa.PublicKey, error) {
	name := providerBreaker(provider)

	var key *rsa.PublicKey
	err := s.guards.call(name, func() error {
		if s.guards.sim.ProviderUnavailable(provider) {
			status := s.guards.sim.ForcedProviderStatus(provider)
			return fmt.Errorf("%s: simulated provider status %d: %w", name, status, sentinel.ErrUnavailable)
		}
		if err := s.guards.injectProviderFaults(ctx, name); err != nil {
			return err
		}
		var err error
		key, err = s.inner.Get(ctx, provider, keyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}
