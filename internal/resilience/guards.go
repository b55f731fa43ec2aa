// Package resilience wraps the gateway's downstream dependencies with
// circuit breakers. Business logic calls the guarded interfaces and never
// touches breaker state directly; a rejected call surfaces as
// sentinel.ErrUnavailable for the service layer to translate.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokengate/internal/simulation"
	"tokengate/pkg/platform/circuit"
	"tokengate/pkg/platform/sentinel"
)

// Breaker names, one per downstream dependency. Provider breakers are per
// provider so a Google outage does not lock out Apple sign-ins.
const (
	BreakerGoogle        = "google"
	BreakerApple         = "apple"
	BreakerUserDirectory = "user_directory"
	BreakerSessionStore  = "session_store"
)

// Guards owns the breaker registry and the fault-injection settings shared
// by every guarded dependency.
type Guards struct {
	registry *circuit.Registry
	sim      *simulation.Settings
	rejected func(name string)
}

// GuardsOption configures Guards.
type GuardsOption func(*Guards)

// WithRejectionCounter registers a callback invoked with the breaker name
// each time an open circuit rejects a call.
func WithRejectionCounter(fn func(name string)) GuardsOption {
	return func(g *Guards) {
		g.rejected = fn
	}
}

// NewGuards constructs the shared guard state. sim is nil in production.
func NewGuards(registry *circuit.Registry, sim *simulation.Settings, opts ...GuardsOption) *Guards {
	g := &Guards{registry: registry, sim: sim}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var errCircuitOpen = fmt.Errorf("circuit open: %w", sentinel.ErrUnavailable)

// call runs fn under the named breaker. A forced-open or open circuit
// rejects without invoking fn; outcomes are recorded so the breaker can
// open and recover.
func (g *Guards) call(name string, fn func() error) error {
	if g.sim.CircuitForcedOpen(name) {
		g.reject(name)
		return fmt.Errorf("%s: %w", name, errCircuitOpen)
	}
	if !g.registry.Get(name).Allow() {
		g.reject(name)
		return fmt.Errorf("%s: %w", name, errCircuitOpen)
	}

	err := fn()
	if isDependencyFailure(err) {
		g.registry.RecordFailure(name)
	} else {
		g.registry.RecordSuccess(name)
	}
	return err
}

func (g *Guards) reject(name string) {
	if g.rejected != nil {
		g.rejected(name)
	}
}

// isDependencyFailure reports whether an error should count against the
// breaker. A not-found or conflict is a successful call with a negative
// business outcome, not a sign the dependency is unhealthy.
func isDependencyFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		return false
	}
	// The caller walking away is not the dependency's fault.
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// injectProviderFaults applies simulated provider outages and latency ahead
// of a real provider call. It returns a non-nil error when the call should
// fail without reaching the provider.
func (g *Guards) injectProviderFaults(ctx context.Context, name string) error {
	latency, timedOut := g.sim.InjectedLatency()
	if latency > 0 {
		sleep := latency
		if timedOut {
			sleep = min(latency, g.sim.LatencyThreshold)
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		if timedOut {
			return fmt.Errorf("%s: simulated timeout: %w", name, sentinel.ErrUnavailable)
		}
	}
	return nil
}
