// Package impwhen provides argument-sensitive stubs for Go tests.
// A stub returns whatever the first matching rule says, where rules are declared
// against argument patterns:
//
//	fetch := impwhen.NewFunc[func(string) (int, error)](nil)
//	impwhen.When(fetch).
//		CalledWith("a").Return(1, nil).
//		CalledWith(impwhen.Predicate(func(s string) bool { return s != "" })).Return(2, nil)
//
// This is the public API entry point. Implementation lives in internal/core.
package impwhen

import (
	"github.com/toejough/impwhen/internal/core"
	"github.com/toejough/impwhen/match"
)

// Call represents a single invocation of a stub.
type Call = core.Call

// Cardinality says how many times a rule may fire.
type Cardinality = core.Cardinality

// Equals is the comparator handed to predicates.
type Equals = core.Equals

// Future is a result that settles once, with a value or an error.
type Future = core.Future

// Matcher defines the interface for asymmetric matching.
type Matcher = core.Matcher

// MismatchError is panicked from a stub when an ExpectCalledWith rule does not match.
type MismatchError = core.MismatchError

// RuleState is a snapshot of a declared rule.
type RuleState = core.RuleState

// VerificationError lists every rule that never fired.
type VerificationError = core.VerificationError

// Configuration errors re-exported from internal/core.
var (
	ErrAllArgsNotAlone     = core.ErrAllArgsNotAlone
	ErrDefaultWithoutRules = core.ErrDefaultWithoutRules
	ErrDetached            = core.ErrDetached
	ErrNoAsyncResult       = core.ErrNoAsyncResult
	ErrNotFunc             = core.ErrNotFunc
	ErrResultType          = core.ErrResultType
)

// Cardinality values.
const (
	Unlimited = core.Unlimited
	Once      = core.Once
)

// AllArgs returns a pattern that receives the whole argument list.
func AllArgs(fn func(args []any) bool) *match.AllArgsMatcher {
	return match.AllArgs(fn)
}

// AllArgsWith is AllArgs for predicates that need the equality comparator.
func AllArgsWith(fn func(args []any, equals Equals) bool) *match.AllArgsMatcher {
	return match.AllArgsWith(fn)
}

// Any returns a matcher that matches any value.
func Any() Matcher {
	return match.BeAny
}

// Go runs fn on its own goroutine and settles the returned future with its results.
func Go(fn func() (any, error)) *Future {
	return core.Go(fn)
}

// Predicate flags fn as a predicate pattern. Arguments that are not a T do not match.
func Predicate[T any](fn func(T) bool) *match.PredicateMatcher {
	return match.Predicate(fn)
}

// PredicateWith is Predicate for predicates that need the equality comparator.
func PredicateWith(fn func(actual any, equals Equals) bool) *match.PredicateMatcher {
	return match.PredicateWith(fn)
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	return core.Rejected(err)
}

// Resolved returns a future already settled with value.
func Resolved(value any) *Future {
	return core.Resolved(value)
}

// Satisfy returns an asymmetric matcher backed by a predicate that explains mismatches.
func Satisfy[T any](predicate func(T) error) Matcher {
	return match.Satisfy(predicate)
}
