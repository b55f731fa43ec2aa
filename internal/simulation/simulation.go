// Package simulation holds test-only fault injection for exercising the
// gateway's failure paths: maintenance mode, provider outages, injected
// latency, and forced-open circuits.
//
// Production builds run with a nil *Settings; every accessor is nil-safe and
// reports "no fault", so call sites never branch on whether simulation is
// enabled.
package simulation

import (
	"net/http"
	"time"

	"tokengate/internal/identity"
)

// Settings describes the faults to inject. Constructed once at startup from
// configuration and treated as read-only afterwards.
type Settings struct {
	// MaintenanceMode rejects every request before any external call.
	MaintenanceMode bool

	// ProviderStatus forces an identity provider's key endpoint to answer
	// with the given HTTP status. Zero (or 200) leaves the provider healthy.
	ProviderStatus map[identity.Provider]int

	// Latency is added to provider calls. When it exceeds LatencyThreshold
	// the call is treated as timed out instead of merely slow.
	Latency          time.Duration
	LatencyThreshold time.Duration

	// ForceCircuitOpen pins the named breakers open regardless of their
	// recorded outcomes.
	ForceCircuitOpen map[string]bool
}

// InMaintenance reports whether maintenance mode is active.
func (s *Settings) InMaintenance() bool {
	return s != nil && s.MaintenanceMode
}

// ForcedProviderStatus returns the status the provider is forced to answer
// with, or 0 when no fault is configured for it.
func (s *Settings) ForcedProviderStatus(provider identity.Provider) int {
	if s == nil {
		return 0
	}
	return s.ProviderStatus[provider]
}

// ProviderUnavailable reports whether the provider's forced status is a
// failure.
func (s *Settings) ProviderUnavailable(provider identity.Provider) bool {
	status := s.ForcedProviderStatus(provider)
	return status != 0 && status != http.StatusOK
}

// InjectedLatency returns the latency to add to a provider call and whether
// that latency crosses the timeout threshold.
func (s *Settings) InjectedLatency() (latency time.Duration, timedOut bool) {
	if s == nil || s.Latency <= 0 {
		return 0, false
	}
	return s.Latency, s.LatencyThreshold > 0 && s.Latency > s.LatencyThreshold
}

// CircuitForcedOpen reports whether the named breaker is pinned open.
func (s *Settings) CircuitForcedOpen(name string) bool {
	return s != nil && s.ForceCircuitOpen[name]
}
