// Package match provides patterns for use with impwhen's CalledWith and ExpectCalledWith.
// Gomega matchers work as patterns too, so the two mix freely:
//
//	import (
//	    . "github.com/onsi/gomega"
//	    "github.com/toejough/impwhen/match"
//	)
//
//	impwhen.When(add).CalledWith(BeNumerically(">", 0), match.BeAny).Return(42)
package match

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/toejough/impwhen/internal/core"
)

// errTypeMismatch is a sentinel error for type assertion failures.
var errTypeMismatch = errors.New("type mismatch")

// AllArgsMatcher is a pattern evaluated against the whole argument list.
type AllArgsMatcher = core.AllArgsPredicate

// Equals is the comparator handed to predicates. It honors Matcher patterns.
type Equals = core.Equals

// Matcher defines the interface for asymmetric matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher = core.Matcher

// PredicateMatcher is a pattern invoked with the actual argument.
type PredicateMatcher = core.Predicate

// BeAny is a matcher that matches any value.
// Useful when you don't care about a particular argument.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeAny Matcher = anyMatcher{}

// AllArgs returns a pattern that receives every argument of the call at once. It must
// be the only pattern given to CalledWith.
//
// Example:
//
//	impwhen.When(sum).CalledWith(match.AllArgs(func(args []any) bool {
//	    return len(args) > 2
//	})).Return(0)
func AllArgs(fn func(args []any) bool) *AllArgsMatcher {
	return &AllArgsMatcher{
		Name: core.FuncName(fn),
		Fn: func(args []any, _ Equals) bool {
			return fn(args)
		},
		Source: fn,
	}
}

// AllArgsWith is AllArgs for predicates that delegate structural checks to equals.
func AllArgsWith(fn func(args []any, equals Equals) bool) *AllArgsMatcher {
	return core.NewAllArgsPredicate(fn)
}

// Predicate flags fn as a predicate pattern: it is called with the actual argument,
// and its result decides the match. Arguments that are not a T do not match.
//
// An unflagged function passed to CalledWith is a literal and is never called.
func Predicate[T any](fn func(T) bool) *PredicateMatcher {
	return &PredicateMatcher{
		Name: core.FuncName(fn),
		Fn: func(actual any, _ Equals) bool {
			val, ok := as[T](actual)

			return ok && fn(val)
		},
		Source: fn,
	}
}

// PredicateWith is Predicate for predicates that delegate structural checks to equals.
func PredicateWith(fn func(actual any, equals Equals) bool) *PredicateMatcher {
	return core.NewPredicate(fn)
}

// Satisfy returns a matcher that uses a predicate function to check for a match.
// The predicate should return nil if the value matches, or an error describing
// the mismatch if it does not. Unlike Predicate, the error shows up in
// ExpectCalledWith failures, which call the predicate a second time to render it.
//
// Example:
//
//	impwhen.When(add).ExpectCalledWith(match.Satisfy(func(x int) error {
//	    if x < 0 { return fmt.Errorf("expected positive, got %d", x) }
//	    return nil
//	})).Return(1)
func Satisfy[T any](predicate func(T) error) Matcher {
	return &satisfyMatcher[T]{predicate: predicate}
}

// as converts actual to T. A nil argument converts to the zero value of any T that
// can hold nil.
func as[T any](actual any) (T, bool) {
	if val, ok := actual.(T); ok {
		return val, true
	}

	var zero T

	if actual != nil {
		return zero, false
	}

	switch reflect.TypeFor[T]().Kind() { //nolint:exhaustive // only nillable kinds convert
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return zero, true
	default:
		return zero, false
	}
}

// anyMatcher is the implementation of the BeAny matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since BeAny always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

// satisfyMatcher keeps no state between Match and FailureMessage, so one instance can
// serve concurrent calls.
type satisfyMatcher[T any] struct {
	predicate func(T) error
}

// FailureMessage runs the predicate again to report why actual was rejected.
func (m *satisfyMatcher[T]) FailureMessage(actual any) string {
	if val, ok := actual.(T); ok {
		if err := m.predicate(val); err != nil {
			return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, err)
		}
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfyMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)

	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	return m.predicate(val) == nil, nil
}
