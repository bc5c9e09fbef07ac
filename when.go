package impwhen

import (
	"fmt"
	"reflect"

	"github.com/toejough/impwhen/internal/core"
)

// Binding declares rules and defaults for one stub.
type Binding[F any] struct {
	fn   *Func[F]
	core *core.Binding
}

// When returns the binding of fn in the default registry, creating it if needed.
// Calling When again for the same fn returns a binding to the same rules.
func When[F any](fn *Func[F]) *Binding[F] {
	return WhenIn(Default(), fn)
}

// WhenIn is When for an explicit registry.
func WhenIn[F any](registry *Registry, fn *Func[F]) *Binding[F] {
	return &Binding[F]{fn: fn, core: registry.Bind(fn.stub)}
}

// CalledWith starts a rule set for calls whose arguments match patterns, one pattern
// per argument. Calls with a different number of arguments never match.
func (b *Binding[F]) CalledWith(patterns ...any) *Rules[F] {
	return &Rules[F]{binding: b, patterns: patterns}
}

// DefaultImplementation makes impl handle every call no rule matches.
func (b *Binding[F]) DefaultImplementation(impl F) *Binding[F] {
	b.core.SetDefault(b.fn.implementation(impl), false)

	return b
}

// DefaultReject makes every call no rule matches reject with err.
func (b *Binding[F]) DefaultReject(err error) *Binding[F] {
	b.core.SetDefault(b.fn.rejection(err), false)

	return b
}

// DefaultResolve makes every call no rule matches resolve to value.
func (b *Binding[F]) DefaultResolve(value any) *Binding[F] {
	b.core.SetDefault(b.fn.resolution(value), false)

	return b
}

// DefaultReturn makes every call no rule matches return values.
func (b *Binding[F]) DefaultReturn(values ...any) *Binding[F] {
	b.core.SetDefault(returning(values), false)

	return b
}

// ExpectCalledWith is CalledWith for rules that fail loudly: a call with the right
// number of arguments that does not match panics with a *MismatchError naming the
// first mismatched argument.
func (b *Binding[F]) ExpectCalledWith(patterns ...any) *Rules[F] {
	return &Rules[F]{binding: b, patterns: patterns, assert: true}
}

// Implementation sets a default that is only valid alongside CalledWith rules.
// Until a rule is declared, calling the stub panics with ErrDefaultWithoutRules.
func (b *Binding[F]) Implementation(impl F) *Binding[F] {
	b.core.SetDefault(b.fn.implementation(impl), true)

	return b
}

// Reject is the rejecting form of Implementation.
func (b *Binding[F]) Reject(err error) *Binding[F] {
	b.core.SetDefault(b.fn.rejection(err), true)

	return b
}

// Reset forgets every rule and restores the stub's behavior from before When.
func (b *Binding[F]) Reset() {
	b.core.Reset()
}

// Resolve is the resolving form of Implementation.
func (b *Binding[F]) Resolve(value any) *Binding[F] {
	b.core.SetDefault(b.fn.resolution(value), true)

	return b
}

// Return is the value form of Implementation.
func (b *Binding[F]) Return(values ...any) *Binding[F] {
	b.core.SetDefault(returning(values), true)

	return b
}

// Rules returns a snapshot of the declared rules in priority order.
func (b *Binding[F]) Rules() []RuleState {
	return b.core.Rules()
}

// Rules declares actions for one pattern set.
type Rules[F any] struct {
	binding  *Binding[F]
	patterns []any
	assert   bool
}

// CalledWith starts another pattern set on the same stub.
func (r *Rules[F]) CalledWith(patterns ...any) *Rules[F] {
	return r.binding.CalledWith(patterns...)
}

// DefaultImplementation sets the stub's default; see Binding.DefaultImplementation.
func (r *Rules[F]) DefaultImplementation(impl F) *Rules[F] {
	r.binding.DefaultImplementation(impl)

	return r
}

// DefaultReject sets the stub's default; see Binding.DefaultReject.
func (r *Rules[F]) DefaultReject(err error) *Rules[F] {
	r.binding.DefaultReject(err)

	return r
}

// DefaultResolve sets the stub's default; see Binding.DefaultResolve.
func (r *Rules[F]) DefaultResolve(value any) *Rules[F] {
	r.binding.DefaultResolve(value)

	return r
}

// DefaultReturn sets the stub's default; see Binding.DefaultReturn.
func (r *Rules[F]) DefaultReturn(values ...any) *Rules[F] {
	r.binding.DefaultReturn(values...)

	return r
}

// Do makes matching calls run handler, which also sees the call context.
func (r *Rules[F]) Do(handler func(call Call) []any) *Rules[F] {
	return r.add(core.Action(handler), core.Unlimited)
}

// DoOnce is Do for a single matching call.
func (r *Rules[F]) DoOnce(handler func(call Call) []any) *Rules[F] {
	return r.add(core.Action(handler), core.Once)
}

// ExpectCalledWith starts another asserting pattern set on the same stub.
func (r *Rules[F]) ExpectCalledWith(patterns ...any) *Rules[F] {
	return r.binding.ExpectCalledWith(patterns...)
}

// Implementation makes matching calls run impl with the call's arguments.
func (r *Rules[F]) Implementation(impl F) *Rules[F] {
	return r.add(r.binding.fn.implementation(impl), core.Unlimited)
}

// ImplementationOnce is Implementation for a single matching call.
func (r *Rules[F]) ImplementationOnce(impl F) *Rules[F] {
	return r.add(r.binding.fn.implementation(impl), core.Once)
}

// Panic makes matching calls panic with value.
func (r *Rules[F]) Panic(value any) *Rules[F] {
	return r.add(panicking(value), core.Unlimited)
}

// PanicOnce is Panic for a single matching call.
func (r *Rules[F]) PanicOnce(value any) *Rules[F] {
	return r.add(panicking(value), core.Once)
}

// Reject makes matching calls reject with err: a *Future result settles with err, a
// trailing error result carries it. err is only delivered when the stub is called.
func (r *Rules[F]) Reject(err error) *Rules[F] {
	return r.add(r.binding.fn.rejection(err), core.Unlimited)
}

// RejectOnce is Reject for a single matching call.
func (r *Rules[F]) RejectOnce(err error) *Rules[F] {
	return r.add(r.binding.fn.rejection(err), core.Once)
}

// Reset removes every rule declared with this pattern set.
func (r *Rules[F]) Reset() *Rules[F] {
	r.binding.core.RemoveRules(r.patterns)

	return r
}

// Resolve makes matching calls resolve to value: a *Future result settles with it,
// otherwise value is returned ahead of a nil trailing error.
func (r *Rules[F]) Resolve(value any) *Rules[F] {
	return r.add(r.binding.fn.resolution(value), core.Unlimited)
}

// ResolveOnce is Resolve for a single matching call.
func (r *Rules[F]) ResolveOnce(value any) *Rules[F] {
	return r.add(r.binding.fn.resolution(value), core.Once)
}

// Return makes matching calls return values, in result order.
func (r *Rules[F]) Return(values ...any) *Rules[F] {
	return r.add(returning(values), core.Unlimited)
}

// ReturnOnce is Return for a single matching call. Several ReturnOnce values on the
// same patterns are returned in declaration order.
func (r *Rules[F]) ReturnOnce(values ...any) *Rules[F] {
	return r.add(returning(values), core.Once)
}

func (r *Rules[F]) add(action core.Action, cardinality core.Cardinality) *Rules[F] {
	r.binding.core.AddRule(r.patterns, action, cardinality, r.assert)

	return r
}

//nolint:gochecknoglobals // reflect types are constant-like
var (
	errorType  = reflect.TypeFor[error]()
	futureType = reflect.TypeFor[*Future]()
)

// asyncShape reports how F carries a resolution: through a sole *Future result, or a
// trailing error result.
func (f *Func[F]) asyncShape() (future, trailingErr bool) {
	numOut := f.fnType.NumOut()

	return numOut == 1 && f.fnType.Out(0) == futureType,
		numOut > 0 && f.fnType.Out(numOut-1) == errorType
}

func (f *Func[F]) rejection(err error) core.Action {
	return func(Call) []any {
		future, trailingErr := f.asyncShape()

		switch {
		case future:
			return []any{core.Rejected(err)}
		case trailingErr:
			out := make([]any, f.fnType.NumOut())
			out[len(out)-1] = err

			return out
		default:
			panic(fmt.Errorf("%w: %s", core.ErrNoAsyncResult, f.fnType))
		}
	}
}

func (f *Func[F]) resolution(value any) core.Action {
	return func(Call) []any {
		future, trailingErr := f.asyncShape()

		switch {
		case future:
			return []any{core.Resolved(value)}
		case trailingErr:
			return []any{value}
		default:
			panic(fmt.Errorf("%w: %s", core.ErrNoAsyncResult, f.fnType))
		}
	}
}

func panicking(value any) core.Action {
	return func(Call) []any {
		panic(value)
	}
}

func returning(values []any) core.Action {
	return func(Call) []any {
		return values
	}
}
