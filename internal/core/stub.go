// Package core provides the internal implementation of impwhen's stubs,
// argument matching, and rule dispatch.
package core

import (
	"slices"
	"sync"
)

// Call represents a single invocation of a stub.
type Call struct {
	// Receiver is the call context, e.g. the instance a spied method was invoked on.
	// Nil for plain function stubs.
	Receiver any
	Args     []any
}

// Impl is the behavior installed on a stub. A nil result slice means "no value":
// typed adapters turn it into the zero value of every result.
type Impl func(call Call) []any

// Stub is the minimal test-double primitive rules are bound to. Its pointer identity
// is the registry key.
type Stub struct {
	mu     sync.Mutex
	name   string
	impl   Impl
	calls  []Call
	resets []func()
}

// NewStub creates a stub whose pre-existing behavior is impl (which may be nil).
func NewStub(name string, impl Impl) *Stub {
	return &Stub{name: name, impl: impl}
}

// Calls returns a copy of the recorded calls, oldest first.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.calls)
}

// Implementation returns the currently installed behavior.
func (s *Stub) Implementation() Impl {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.impl
}

// Invoke records the call and forwards it to the installed behavior.
func (s *Stub) Invoke(call Call) []any {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	impl := s.impl
	s.mu.Unlock()

	if impl == nil {
		return nil
	}

	return impl(call)
}

// Name returns the stub's diagnostic name.
func (s *Stub) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.name
}

// OnReset registers fn to run the next time Reset is called.
func (s *Stub) OnReset(fn func()) {
	s.mu.Lock()
	s.resets = append(s.resets, fn)
	s.mu.Unlock()
}

// Reset runs and clears the reset hooks, then drops the installed behavior and the
// recorded calls.
func (s *Stub) Reset() {
	s.mu.Lock()
	hooks := s.resets
	s.resets = nil
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	s.mu.Lock()
	s.impl = nil
	s.calls = nil
	s.mu.Unlock()
}

// SetImplementation replaces the installed behavior.
func (s *Stub) SetImplementation(impl Impl) {
	s.mu.Lock()
	s.impl = impl
	s.mu.Unlock()
}

// SetName changes the stub's diagnostic name.
func (s *Stub) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}
