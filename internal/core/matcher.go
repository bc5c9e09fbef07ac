package core

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Matcher defines the interface for asymmetric matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// Equals is the comparator handed to predicates so they can delegate structural checks.
type Equals func(actual, expected any) bool

// Predicate is a pattern that is invoked with the actual argument instead of being
// compared to it.
type Predicate struct {
	Name string
	Fn   func(actual any, equals Equals) bool
	// Source is the function the caller flagged. Predicates wrapping the same function
	// are the same pattern.
	Source any
}

// NewPredicate flags fn as a predicate pattern.
func NewPredicate(fn func(actual any, equals Equals) bool) *Predicate {
	return &Predicate{Name: FuncName(fn), Fn: fn, Source: fn}
}

func (p *Predicate) String() string {
	return "predicate " + p.Name
}

// AllArgsPredicate is a pattern that receives the whole argument list. It must be the
// only pattern of its rule.
type AllArgsPredicate struct {
	Name   string
	Fn     func(args []any, equals Equals) bool
	Source any
}

// NewAllArgsPredicate flags fn as an all-arguments predicate.
func NewAllArgsPredicate(fn func(args []any, equals Equals) bool) *AllArgsPredicate {
	return &AllArgsPredicate{Name: FuncName(fn), Fn: fn, Source: fn}
}

func (p *AllArgsPredicate) String() string {
	return "all-arguments predicate " + p.Name
}

// DeepEquals reports whether actual matches expected, honoring Matcher patterns at
// any depth of expected.
func DeepEquals(actual, expected any) bool {
	return deepEqual(actual, expected, true)
}

// FuncName returns the runtime name of fn, shortened to its last path element.
func FuncName(fn any) string {
	value := reflect.ValueOf(fn)
	if value.Kind() != reflect.Func || value.IsNil() {
		return "<nil>"
	}

	name := runtime.FuncForPC(value.Pointer()).Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}

// MatchValue checks if actual matches expected.
// If expected implements the Matcher interface, uses its Match method.
// Otherwise compares deeply like reflect.DeepEqual, letting matchers nested in
// expected decide their positions and comparing functions by identity.
// Returns (success, errorMessage). If success is true, errorMessage is empty.
func MatchValue(actual, expected any) (bool, string) {
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	return deepEqual(actual, expected, true), ""
}

// evaluate matches one pattern against one actual argument. The error is non-nil
// only for an asserted mismatch or a misplaced all-arguments predicate.
func evaluate(pattern, actual any, assert bool) (bool, error) {
	switch typed := pattern.(type) {
	case *Predicate:
		if typed.Fn(actual, DeepEquals) {
			return true, nil
		}

		if assert {
			return false, &MismatchError{Expected: typed, Actual: actual, Detail: typed.Name + " returned false"}
		}

		return false, nil
	case *AllArgsPredicate:
		return false, fmt.Errorf("%w: found %s among positional patterns", ErrAllArgsNotAlone, typed)
	}

	ok, detail := MatchValue(actual, pattern)
	if ok || !assert {
		return ok, nil
	}

	return false, &MismatchError{Expected: pattern, Actual: actual, Detail: detail}
}

// evaluateAll matches an all-arguments predicate against the whole argument list.
func evaluateAll(pattern *AllArgsPredicate, args []any, assert bool) (bool, error) {
	if pattern.Fn(args, DeepEquals) {
		return true, nil
	}

	if assert {
		return false, &MismatchError{
			Position: -1,
			Expected: pattern,
			Actual:   args,
			Detail:   pattern.Name + " returned false",
		}
	}

	return false, nil
}

// matchArgs folds the evaluator over a rule's patterns, stopping at the first
// mismatched position.
func matchArgs(patterns, args []any, assert bool) (bool, error) {
	if all, ok := allArgsPattern(patterns); ok {
		if len(patterns) != 1 {
			return false, fmt.Errorf("%w: got %d patterns", ErrAllArgsNotAlone, len(patterns))
		}

		return evaluateAll(all, args, assert)
	}

	if len(args) != len(patterns) {
		return false, nil
	}

	for idx, pattern := range patterns {
		ok, err := evaluate(pattern, args[idx], assert)
		if err != nil {
			if mismatch, isMismatch := err.(*MismatchError); isMismatch { //nolint:errorlint // produced unwrapped above
				mismatch.Position = idx
			}

			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func allArgsPattern(patterns []any) (*AllArgsPredicate, bool) {
	for _, pattern := range patterns {
		if all, ok := pattern.(*AllArgsPredicate); ok {
			return all, true
		}
	}

	return nil, false
}
