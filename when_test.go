package impwhen_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/toejough/impwhen"
	"github.com/toejough/impwhen/match"
)

func TestWhen_ReturnsValuesForMatchingArgs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	lookup := impwhen.NewFunc[func(string) (int, error)](nil)

	impwhen.WhenIn(reg, lookup).
		CalledWith("a").Return(1, nil).
		CalledWith("b").Return(2, nil)

	fn := lookup.Fn()

	n, err := fn("a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(1))

	n, _ = fn("b")
	g.Expect(n).To(Equal(2))

	n, err = fn("c")
	g.Expect(n).To(BeZero(), "unmatched calls return zero values")
	g.Expect(err).NotTo(HaveOccurred())
}

func TestWhen_SameFuncSharesRules(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](nil)

	impwhen.WhenIn(reg, fn).CalledWith(1).Return("one")
	impwhen.WhenIn(reg, fn).CalledWith(2).Return("two")

	g.Expect(fn.Fn()(1)).To(Equal("one"))
	g.Expect(fn.Fn()(2)).To(Equal("two"))
	g.Expect(impwhen.WhenIn(reg, fn).Rules()).To(HaveLen(2))
}

func TestWhen_ReplacementAndOnceRules(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(string) int](nil)

	impwhen.WhenIn(reg, fn).
		CalledWith("k").Return(1).
		CalledWith("k").Return(2).
		CalledWith("k").ReturnOnce(10).ReturnOnce(11)

	g.Expect(fn.Fn()("k")).To(Equal(10))
	g.Expect(fn.Fn()("k")).To(Equal(11))
	g.Expect(fn.Fn()("k")).To(Equal(2))
	g.Expect(fn.Fn()("k")).To(Equal(2))
}

func TestWhen_AssertedMismatchPanics(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](nil).Named("numberName")

	impwhen.WhenIn(reg, fn).ExpectCalledWith(1).Return("one")

	g.Expect(func() { fn.Fn()(2) }).To(PanicWith(SatisfyAll(
		BeAssignableToTypeOf(&impwhen.MismatchError{}),
		MatchError(ContainSubstring("numberName: argument 0")),
		MatchError(ContainSubstring("<int>: 1")),
		MatchError(ContainSubstring("<int>: 2")),
		MatchError(ContainSubstring("when_test.go:")),
	)))

	impwhen.WhenIn(reg, fn).CalledWith(1).Return("plain")

	g.Expect(fn.Fn()(1)).To(Equal("plain"), "equal patterns replace the rule whether or not it asserts")
	g.Expect(func() { fn.Fn()(2) }).NotTo(Panic())
}

func TestWhen_PlainMismatchReturnsZero(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](nil)

	impwhen.WhenIn(reg, fn).CalledWith(1).Return("one")

	g.Expect(fn.Fn()(2)).To(BeEmpty())
}

func TestWhen_PredicatesAndMatchers(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int, string) string](nil)

	isEven := func(n int) bool { return n%2 == 0 }

	impwhen.WhenIn(reg, fn).
		CalledWith(impwhen.Predicate(isEven), match.BeAny).Return("even").
		CalledWith(BeNumerically(">", 100), HaveLen(3)).Return("big")

	g.Expect(fn.Fn()(2, "x")).To(Equal("even"))
	g.Expect(fn.Fn()(101, "abc")).To(Equal("big"))
	g.Expect(fn.Fn()(101, "ab")).To(BeEmpty())
}

func TestWhen_UnflaggedFunctionIsALiteral(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(func(int) bool) string](nil)

	called := false
	alwaysTrue := func(int) bool {
		called = true

		return true
	}

	impwhen.WhenIn(reg, fn).CalledWith(alwaysTrue).Return("matched")

	g.Expect(fn.Fn()(alwaysTrue)).To(Equal("matched"), "a function literal matches itself")
	g.Expect(fn.Fn()(func(int) bool { return true })).To(BeEmpty(), "and no other function")
	g.Expect(called).To(BeFalse())
}

func TestWhen_AllArgs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	sum := impwhen.NewFunc[func(...int) string](nil)

	allDivisibleBy3 := impwhen.AllArgs(func(args []any) bool {
		for _, arg := range args {
			if n, ok := arg.(int); !ok || n%3 != 0 {
				return false
			}
		}

		return true
	})

	impwhen.WhenIn(reg, sum).CalledWith(allDivisibleBy3).Return("all divisible")

	g.Expect(sum.Fn()(3, 6, 9)).To(Equal("all divisible"))
	g.Expect(sum.Fn()(3, 6, 10)).To(BeEmpty())
}

func TestWhen_AllArgsWithOtherPatternsPanicsOnCall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int, int) string](nil)
	anything := impwhen.AllArgs(func([]any) bool { return true })

	impwhen.WhenIn(reg, fn).CalledWith(anything, 1).Return("x")

	g.Expect(func() { fn.Fn()(1, 1) }).To(PanicWith(MatchError(impwhen.ErrAllArgsNotAlone)))
}

func TestWhen_VariadicArgsAreFlattened(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	logf := impwhen.NewFunc[func(string, ...any) string](nil)

	impwhen.WhenIn(reg, logf).CalledWith("%d-%d", 1, 2).Return("pair")

	g.Expect(logf.Fn()("%d-%d", 1, 2)).To(Equal("pair"))
	g.Expect(logf.Fn()("%d-%d", 1)).To(BeEmpty())
	g.Expect(logf.Calls()[0].Args).To(Equal([]any{"%d-%d", 1, 2}))
}

func TestWhen_Implementation(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	join := impwhen.NewFunc[func(string, string) string](nil)

	impwhen.WhenIn(reg, join).
		CalledWith("foo", "bar").Implementation(func(a, b string) string { return a + "+" + b }).
		CalledWith("x", "y").ImplementationOnce(func(a, b string) string { return b + a })

	g.Expect(join.Fn()("foo", "bar")).To(Equal("foo+bar"))
	g.Expect(join.Fn()("foo", "bar")).To(Equal("foo+bar"))
	g.Expect(join.Fn()("x", "y")).To(Equal("yx"))
	g.Expect(join.Fn()("x", "y")).To(BeEmpty())
}

func TestWhen_DoSeesReceiver(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	type greeter struct{ name string }

	reg := impwhen.ForTest(t)
	greet := impwhen.NewFunc[func(string) string](nil)

	impwhen.WhenIn(reg, greet).CalledWith("hi").Do(func(call impwhen.Call) []any {
		self, _ := call.Receiver.(*greeter)

		return []any{"hi from " + self.name}
	})

	method := greet.Method(&greeter{name: "ann"})

	g.Expect(method("hi")).To(Equal("hi from ann"))
}

func TestWhen_ReceiverReachesOriginalWhenUnmatched(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	type counter struct{ label string }

	reg := impwhen.ForTest(t)
	describe := impwhen.NewFunc[func(int) string](nil)
	describe.SetHandler(func(call impwhen.Call) []any {
		c, _ := call.Receiver.(*counter)

		return []any{fmt.Sprintf("%s:%v", c.label, call.Args[0])}
	})

	impwhen.WhenIn(reg, describe).CalledWith(1).Return("stubbed")

	method := describe.Method(&counter{label: "real"})

	g.Expect(method(1)).To(Equal("stubbed"))
	g.Expect(method(2)).To(Equal("real:2"))
}

func TestWhen_PanicActions(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) int](nil)

	impwhen.WhenIn(reg, fn).
		CalledWith(1).Panic("always").
		CalledWith(2).PanicOnce("once")

	g.Expect(func() { fn.Fn()(1) }).To(PanicWith("always"))
	g.Expect(func() { fn.Fn()(1) }).To(PanicWith("always"))
	g.Expect(func() { fn.Fn()(2) }).To(PanicWith("once"))
	g.Expect(fn.Fn()(2)).To(BeZero())
}

func TestWhen_ResolveAndRejectWithTrailingError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	reg := impwhen.ForTest(t)
	fetch := impwhen.NewFunc[func(string) (string, error)](nil)

	impwhen.WhenIn(reg, fetch).
		CalledWith("ok").Resolve("body").
		CalledWith("bad").Reject(boom).
		CalledWith("flaky").RejectOnce(boom).ResolveOnce("recovered")

	body, err := fetch.Fn()("ok")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(body).To(Equal("body"))

	body, err = fetch.Fn()("bad")
	g.Expect(err).To(MatchError(boom))
	g.Expect(body).To(BeEmpty())

	_, err = fetch.Fn()("flaky")
	g.Expect(err).To(MatchError(boom))

	body, err = fetch.Fn()("flaky")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(body).To(Equal("recovered"))
}

func TestWhen_ResolveAndRejectWithFuture(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	reg := impwhen.ForTest(t)
	load := impwhen.NewFunc[func(int) *impwhen.Future](nil)

	impwhen.WhenIn(reg, load).
		CalledWith(1).Resolve("one").
		CalledWith(2).Reject(boom)

	value, err := load.Fn()(1).Await(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal("one"))

	_, err = load.Fn()(2).Await(context.Background())
	g.Expect(err).To(MatchError(boom))

	g.Expect(load.Fn()(3)).To(BeNil(), "no rule, no future")
}

func TestWhen_DeclaringRejectNeverPanics(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	noErrors := impwhen.NewFunc[func(int) int](nil)

	g.Expect(func() {
		impwhen.WhenIn(reg, noErrors).CalledWith(1).Reject(errors.New("boom"))
	}).NotTo(Panic())

	g.Expect(func() { noErrors.Fn()(1) }).To(PanicWith(MatchError(impwhen.ErrNoAsyncResult)))
}

func TestWhen_WrongResultTypePanicsOnCall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func() int](nil)

	impwhen.WhenIn(reg, fn).CalledWith().Return("not an int")

	g.Expect(func() { fn.Fn()() }).To(PanicWith(MatchError(impwhen.ErrResultType)))
}

func TestWhen_InterfaceResultsAcceptConcreteValues(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func() (fmt.Stringer, error)](nil)

	var builder strings.Builder

	builder.WriteString("built")

	impwhen.WhenIn(reg, fn).CalledWith().Return(&builder)

	got, err := fn.Fn()()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got.String()).To(Equal("built"))
}

func TestWhen_DefaultsCombineWithRules(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](nil)

	impwhen.WhenIn(reg, fn).
		CalledWith(1).Return("one").
		DefaultReturn("default")

	g.Expect(fn.Fn()(1)).To(Equal("one"))
	g.Expect(fn.Fn()(2)).To(Equal("default"))

	impwhen.WhenIn(reg, fn).DefaultImplementation(func(n int) string { return fmt.Sprint("impl-", n) })

	g.Expect(fn.Fn()(3)).To(Equal("impl-3"))
}

func TestWhen_FalsyDefault(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) bool](func(int) bool { return true })

	impwhen.WhenIn(reg, fn).DefaultReturn(false)

	g.Expect(fn.Fn()(1)).To(BeFalse())
}

func TestWhen_DefaultAsyncAlone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	reg := impwhen.ForTest(t)
	resolved := impwhen.NewFunc[func() (int, error)](nil)
	rejected := impwhen.NewFunc[func() (int, error)](nil)

	impwhen.WhenIn(reg, resolved).DefaultResolve(7)
	impwhen.WhenIn(reg, rejected).DefaultReject(boom)

	n, err := resolved.Fn()()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(7))

	_, err = rejected.Fn()()
	g.Expect(err).To(MatchError(boom))
}

func TestWhen_ComposingDefaultWithoutRulesPanics(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](nil)

	impwhen.WhenIn(reg, fn).Return("default")

	g.Expect(func() { fn.Fn()(1) }).To(PanicWith(MatchError(impwhen.ErrDefaultWithoutRules)))

	impwhen.WhenIn(reg, fn).CalledWith(1).Return("one")

	g.Expect(fn.Fn()(1)).To(Equal("one"))
	g.Expect(fn.Fn()(2)).To(Equal("default"))
}

func TestWhen_ComposingDefaultVariants(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) (int, error)](nil)

	impwhen.WhenIn(reg, fn).CalledWith(0).Return(0, nil)

	impwhen.WhenIn(reg, fn).Resolve(5)
	n, err := fn.Fn()(1)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(5))

	impwhen.WhenIn(reg, fn).Reject(boom)
	_, err = fn.Fn()(1)
	g.Expect(err).To(MatchError(boom))

	impwhen.WhenIn(reg, fn).Implementation(func(n int) (int, error) { return n * 10, nil })
	n, _ = fn.Fn()(2)
	g.Expect(n).To(Equal(20))
}

func TestWhen_BindingAloneChangesNothing(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func() string](func() string { return "real" })

	impwhen.WhenIn(reg, fn)

	g.Expect(fn.Fn()()).To(Equal("real"))
}

func TestWhen_KeepsOriginalWhenUnmatched(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(int) string](func(int) string { return "real" })

	impwhen.WhenIn(reg, fn).CalledWith(1).Return("stubbed")

	g.Expect(fn.Fn()(1)).To(Equal("stubbed"))
	g.Expect(fn.Fn()(2)).To(Equal("real"))

	fn.SetImplementation(func(int) string { return "replaced" })
	g.Expect(fn.Fn()(1)).To(Equal("replaced"), "replacing the implementation drops dispatch until a rule is declared")
}

func TestRules_ResetRemovesOnlyThatPatternSet(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	fn := impwhen.NewFunc[func(string) int](nil)

	test := impwhen.WhenIn(reg, fn).CalledWith("test").ReturnOnce(1).ReturnOnce(2)
	impwhen.WhenIn(reg, fn).CalledWith("other").Return(3)

	g.Expect(fn.Fn()("test")).To(Equal(1))

	test.Reset()

	g.Expect(fn.Fn()("test")).To(BeZero())
	g.Expect(fn.Fn()("other")).To(Equal(3))

	test.ReturnOnce(9)
	g.Expect(fn.Fn()("test")).To(Equal(9))
}

func TestWhen_PredicateMayCallTheStub(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	reg := impwhen.ForTest(t)
	depth := impwhen.NewFunc[func(int) int](nil)

	impwhen.WhenIn(reg, depth).
		CalledWith(impwhen.Predicate(func(n int) bool { return n > 0 && depth.Fn()(n-1) >= 0 })).
		Do(func(call impwhen.Call) []any {
			n, _ := call.Args[0].(int)

			return []any{n}
		})

	done := make(chan int, 1)

	go func() { done <- depth.Fn()(3) }()

	g.Eventually(done).WithTimeout(time.Second).Should(Receive(Equal(3)))
	g.Expect(depth.CallCount()).To(Equal(4))
}
