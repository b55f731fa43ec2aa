package circuit

import "sync"

// Listener receives breaker state transitions for reporting to an
// observability sink.
type Listener func(name string, change StateChange)

// Registry holds one breaker per named downstream dependency, creating them
// lazily with shared options. Counter updates are atomic under the registry
// and breaker locks; safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	opts     []Option
	listener Listener
}

// NewRegistry constructs a registry. The listener may be nil.
func NewRegistry(listener Listener, opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
		listener: listener,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.opts...)
		r.breakers[name] = b
	}
	return b
}

// RecordSuccess records a success for name and notifies the listener of any
// transition.
func (r *Registry) RecordSuccess(name string) {
	_, change := r.Get(name).RecordSuccess()
	r.notify(name, change)
}

// RecordFailure records a failure for name and notifies the listener of any
// transition.
func (r *Registry) RecordFailure(name string) {
	_, change := r.Get(name).RecordFailure()
	r.notify(name, change)
}

func (r *Registry) notify(name string, change StateChange) {
	if r.listener == nil {
		return
	}
	if change.Opened || change.HalfOpened || change.Closed {
		r.listener(name, change)
	}
}
