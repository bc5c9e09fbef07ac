package impwhen

import (
	"sync"

	"github.com/toejough/impwhen/internal/core"
)

// Locator captures the call site that declared a rule.
type Locator = core.Locator

// Option configures a Registry.
type Option = core.Option

// Registry maps stubs to their rules.
type Registry = core.Registry

// TestReporter is the minimal interface impwhen needs from test frameworks.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// AssertAllCalled fails the test if any rule in the default registry never fired.
func AssertAllCalled(t TestReporter) {
	t.Helper()

	if err := VerifyAllCalled(); err != nil {
		t.Fatalf("%v", err)
	}
}

// AssertAllCalledIn is AssertAllCalled for an explicit registry.
func AssertAllCalledIn(t TestReporter, registry *Registry) {
	t.Helper()

	if err := registry.VerifyAllCalled(); err != nil {
		t.Fatalf("%v", err)
	}
}

// Default returns the process-wide registry used by When.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(WithLogger(loggerFromEnv()))
	})

	return defaultRegistry
}

// ForTest returns a fresh registry for one test.
//
// If the TestReporter supports Cleanup (like *testing.T), every stub bound in the
// registry is reset automatically when the test completes.
func ForTest(t TestReporter, opts ...Option) *Registry {
	registry := NewRegistry(append([]Option{WithLogger(loggerFromEnv())}, opts...)...)

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(registry.ResetAll)
	}

	return registry
}

// NewRegistry creates an empty registry. Rule locations are captured from the
// caller's stack unless WithLocator says otherwise.
func NewRegistry(opts ...Option) *Registry {
	return core.NewRegistry(append([]Option{WithLocator(callerLocator)}, opts...)...)
}

// NoLocation is a Locator that never inspects the stack.
func NoLocation() string {
	return core.NoLocation()
}

// ResetAll resets every stub bound in the default registry.
func ResetAll() {
	Default().ResetAll()
}

// VerifyAllCalled returns a *VerificationError if any rule in the default registry
// never fired.
func VerifyAllCalled() error {
	return Default().VerifyAllCalled()
}

// WithLocator sets how rule declaration sites are captured.
func WithLocator(locate Locator) Option {
	return core.WithLocator(locate)
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for the When shorthand
	defaultRegistry *Registry
	//nolint:gochecknoglobals // Guards lazy creation of defaultRegistry
	defaultOnce sync.Once
	//nolint:gochecknoglobals // Frames from these packages are never rule declaration sites
	callerLocator = core.CallerLocator(modulePath, modulePath+"/internal/core", modulePath+"/match")
)

const modulePath = "github.com/toejough/impwhen"

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}
