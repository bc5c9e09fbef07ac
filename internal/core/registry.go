package core

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maps stubs to their bindings.
type Registry struct {
	id     string
	locate Locator
	log    zerolog.Logger

	mu       sync.Mutex // Protects bindings and order
	bindings map[*Stub]*Binding
	order    []*Stub // Bind order, so verification output is stable
}

// Option configures a Registry.
type Option func(*Registry)

// WithLocator sets how rule declaration sites are captured.
func WithLocator(locate Locator) Option {
	return func(r *Registry) {
		r.locate = locate
	}
}

// WithLogger sets the logger for binding and dispatch events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = logger
	}
}

// NewRegistry creates an empty registry. Without options it logs nothing and reports
// no rule locations. Every log event carries the registry's ID.
func NewRegistry(opts ...Option) *Registry {
	registry := &Registry{
		id:       uuid.NewString(),
		locate:   NoLocation,
		log:      zerolog.Nop(),
		bindings: make(map[*Stub]*Binding),
	}

	for _, opt := range opts {
		opt(registry)
	}

	registry.log = registry.log.With().Str("registry", registry.id).Logger()

	return registry
}

// Bind returns the binding for stub, creating one if needed.
// Multiple calls with the same stub return the same Binding instance.
//
// A new binding snapshots the stub's current behavior, and resetting the stub
// itself also resets the binding.
func (r *Registry) Bind(stub *Stub) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if binding, ok := r.bindings[stub]; ok {
		return binding
	}

	binding := &Binding{
		registry: r,
		stub:     stub,
		original: stub.Implementation(),
	}
	r.bindings[stub] = binding
	r.order = append(r.order, stub)

	stub.OnReset(func() {
		r.ResetOne(stub)
	})

	r.log.Debug().Str("stub", stub.Name()).Msg("bound")

	return binding
}

// ID identifies the registry in log output.
func (r *Registry) ID() string {
	return r.id
}

// Len returns the number of bound stubs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.bindings)
}

// Lookup returns the binding for stub, if there is one.
func (r *Registry) Lookup(stub *Stub) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[stub]

	return binding, ok
}

// ResetAll resets every bound stub and empties the registry.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	stubs := slices.Clone(r.order)
	r.mu.Unlock()

	for _, stub := range stubs {
		r.ResetOne(stub)
	}

	r.mu.Lock()
	clear(r.bindings)
	r.order = nil
	r.mu.Unlock()
}

// ResetOne restores stub's original behavior and forgets its binding.
// Resetting an unbound stub does nothing.
func (r *Registry) ResetOne(stub *Stub) {
	r.mu.Lock()

	binding, ok := r.bindings[stub]
	if !ok {
		r.mu.Unlock()

		return
	}

	delete(r.bindings, stub)
	r.order = slices.DeleteFunc(r.order, func(s *Stub) bool { return s == stub })
	r.mu.Unlock()

	binding.detach()
	stub.SetImplementation(binding.original)

	r.log.Debug().Str("stub", stub.Name()).Msg("reset")
}

// VerifyAllCalled returns a *VerificationError if any rule of any bound stub never
// fired, and nil otherwise.
func (r *Registry) VerifyAllCalled() error {
	r.mu.Lock()

	bindings := make([]*Binding, 0, len(r.order))
	for _, stub := range r.order {
		bindings = append(bindings, r.bindings[stub])
	}

	r.mu.Unlock()

	var (
		total    int
		uncalled []UncalledRule
	)

	for _, binding := range bindings {
		name := binding.stub.Name()

		for _, rule := range binding.Rules() {
			total++

			if rule.Fired == 0 {
				uncalled = append(uncalled, UncalledRule{
					Stub:     name,
					Patterns: rule.Patterns,
					Location: rule.Location,
				})
			}
		}
	}

	r.log.Debug().Int("total", total).Int("uncalled", len(uncalled)).Msg("verified")

	if len(uncalled) == 0 {
		return nil
	}

	return &VerificationError{
		Called:   total - len(uncalled),
		Total:    total,
		Uncalled: uncalled,
	}
}
