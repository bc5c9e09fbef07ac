package impwhen

import (
	"fmt"
	"reflect"

	"github.com/toejough/impwhen/internal/core"
)

// Func is a typed stub for a function of type F.
type Func[F any] struct {
	stub     *core.Stub
	fnType   reflect.Type
	fn       F
	original F
	target   *F
}

// NewFunc creates a stub of type F. original is its pre-existing behavior and may be
// nil, in which case unmatched calls return zero values.
//
// NewFunc panics if F is not a function type.
func NewFunc[F any](original F) *Func[F] {
	fnType := reflect.TypeFor[F]()
	if fnType.Kind() != reflect.Func {
		panic(fmt.Errorf("%w: %s", core.ErrNotFunc, fnType))
	}

	stubbed := &Func[F]{fnType: fnType, original: original}

	var impl core.Impl
	if !reflect.ValueOf(&original).Elem().IsNil() {
		impl = stubbed.implementation(original)
	}

	stubbed.stub = core.NewStub(core.FuncName(original), impl)
	if impl == nil {
		stubbed.stub.SetName(fnType.String())
	}

	stubbed.fn = stubbed.makeFunc(nil)

	return stubbed
}

// SpyOn replaces the function stored in target with a stub whose pre-existing
// behavior is the replaced function. Restore puts the function back.
func SpyOn[F any](target *F) *Func[F] {
	spy := NewFunc(*target)
	spy.target = target
	*target = spy.fn

	return spy
}

// CallCount returns the number of recorded calls.
func (f *Func[F]) CallCount() int {
	return len(f.stub.Calls())
}

// Calls returns the recorded calls, oldest first.
func (f *Func[F]) Calls() []Call {
	return f.stub.Calls()
}

// Fn returns the stubbed function.
func (f *Func[F]) Fn() F {
	return f.fn
}

// Method returns the stubbed function with receiver forwarded as the call context of
// every call made through it.
func (f *Func[F]) Method(receiver any) F {
	return f.makeFunc(receiver)
}

// Named sets the name used in diagnostics.
func (f *Func[F]) Named(name string) *Func[F] {
	f.stub.SetName(name)

	return f
}

// Reset forgets the stub's rules, calls, and behavior. Afterwards unmatched calls
// return zero values.
func (f *Func[F]) Reset() {
	f.stub.Reset()
}

// Restore resets the stub and, for a spy, puts the original function back into the
// spied variable.
func (f *Func[F]) Restore() {
	f.stub.Reset()
	f.stub.SetImplementation(f.implementationOrNil(f.original))

	if f.target != nil {
		*f.target = f.original
	}
}

// SetHandler installs an untyped behavior that sees the call context.
func (f *Func[F]) SetHandler(handler func(call Call) []any) {
	f.stub.SetImplementation(core.Impl(handler))
}

// SetImplementation installs impl as the stub's behavior.
func (f *Func[F]) SetImplementation(impl F) {
	f.stub.SetImplementation(f.implementationOrNil(impl))
}

// argValues converts call arguments into values for a reflective call of F, expanding
// a variadic tail.
func (f *Func[F]) argValues(args []any) []reflect.Value {
	values := make([]reflect.Value, len(args))

	for idx, arg := range args {
		values[idx] = valueOf(arg, f.paramType(idx))
	}

	return values
}

func (f *Func[F]) implementation(impl F) core.Impl {
	callable := reflect.ValueOf(impl)

	return func(call Call) []any {
		return interfaces(callable.Call(f.argValues(call.Args)))
	}
}

func (f *Func[F]) implementationOrNil(impl F) core.Impl {
	if reflect.ValueOf(&impl).Elem().IsNil() {
		return nil
	}

	return f.implementation(impl)
}

func (f *Func[F]) makeFunc(receiver any) F {
	variadic := f.fnType.IsVariadic()

	made := reflect.MakeFunc(f.fnType, func(in []reflect.Value) []reflect.Value {
		args := make([]any, 0, len(in))

		for idx, value := range in {
			if variadic && idx == len(in)-1 {
				for elem := range value.Len() {
					args = append(args, value.Index(elem).Interface())
				}

				continue
			}

			args = append(args, value.Interface())
		}

		return f.results(f.stub.Invoke(Call{Receiver: receiver, Args: args}))
	})

	fn, _ := made.Interface().(F)

	return fn
}

func (f *Func[F]) paramType(idx int) reflect.Type {
	last := f.fnType.NumIn() - 1
	if f.fnType.IsVariadic() && idx >= last {
		return f.fnType.In(last).Elem()
	}

	return f.fnType.In(idx)
}

// results converts an action's values into F's results. Missing and nil values
// become zero values.
func (f *Func[F]) results(values []any) []reflect.Value {
	out := make([]reflect.Value, f.fnType.NumOut())

	for idx := range out {
		outType := f.fnType.Out(idx)

		if idx >= len(values) || values[idx] == nil {
			out[idx] = reflect.Zero(outType)

			continue
		}

		value := reflect.ValueOf(values[idx])
		if !value.Type().AssignableTo(outType) {
			panic(fmt.Errorf("%w: %s result %d: %T is not assignable to %s",
				core.ErrResultType, f.stub.Name(), idx, values[idx], outType))
		}

		typed := reflect.New(outType).Elem()
		typed.Set(value)
		out[idx] = typed
	}

	return out
}

func interfaces(values []reflect.Value) []any {
	out := make([]any, len(values))
	for idx, value := range values {
		out[idx] = value.Interface()
	}

	return out
}

func valueOf(arg any, paramType reflect.Type) reflect.Value {
	if arg == nil {
		return reflect.Zero(paramType)
	}

	return reflect.ValueOf(arg)
}
