package core

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Binding is the dispatch state attached to one stub.
type Binding struct {
	registry *Registry
	stub     *Stub
	original Impl

	mu                sync.Mutex // Protects everything below
	rules             []*Rule    // Once rules first, then by ID
	nextID            int
	defaultAction     Action
	defaultNeedsRules bool // default came from the composing API
	hadPatternRules   bool
	detached          bool
}

// AddRule declares a rule and installs the dispatch algorithm on the stub.
// An unlimited rule replaces any unlimited rule with equal patterns.
func (b *Binding) AddRule(patterns []any, action Action, cardinality Cardinality, assert bool) *Rule {
	location := b.registry.locate()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.mustBeAttached()

	rule := &Rule{
		Patterns:         slices.Clone(patterns),
		Action:           action,
		Cardinality:      cardinality,
		AssertOnMismatch: assert,
		ID:               b.nextID,
		Location:         location,
	}
	b.nextID++

	if cardinality == Unlimited {
		b.rules = slices.DeleteFunc(b.rules, func(existing *Rule) bool {
			return existing.Cardinality == Unlimited && samePatterns(existing.Patterns, rule.Patterns)
		})
	}

	b.rules = append(b.rules, rule)
	slices.SortStableFunc(b.rules, rulePriority)
	b.hadPatternRules = true

	b.registry.log.Debug().
		Str("stub", b.stub.Name()).
		Int("rule", rule.ID).
		Stringer("cardinality", cardinality).
		Bool("assert", assert).
		Str("at", location).
		Msg("rule declared")

	b.install()

	return rule
}

// RemoveRules drops every rule whose patterns equal patterns.
func (b *Binding) RemoveRules(patterns []any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rules = slices.DeleteFunc(b.rules, func(existing *Rule) bool {
		return samePatterns(existing.Patterns, patterns)
	})
}

// Reset detaches the binding and restores the stub's original behavior.
func (b *Binding) Reset() {
	b.registry.ResetOne(b.stub)
}

// Rules returns a snapshot of the rules in priority order.
func (b *Binding) Rules() []RuleState {
	b.mu.Lock()
	defer b.mu.Unlock()

	states := make([]RuleState, 0, len(b.rules))
	for _, rule := range b.rules {
		states = append(states, RuleState{
			ID:          rule.ID,
			Patterns:    rule.Patterns,
			Cardinality: rule.Cardinality,
			Location:    rule.Location,
			Fired:       rule.fired,
		})
	}

	return states
}

// SetDefault sets the fallback used when no rule matches. With needsRules, the stub
// fails until at least one pattern rule has been declared.
func (b *Binding) SetDefault(action Action, needsRules bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mustBeAttached()

	b.defaultAction = action
	b.defaultNeedsRules = needsRules

	b.install()
}

// Stub returns the bound stub.
func (b *Binding) Stub() *Stub {
	return b.stub
}

func (b *Binding) detach() {
	b.mu.Lock()
	b.detached = true
	b.mu.Unlock()
}

func (b *Binding) dispatch(call Call) []any {
	return b.selectAction(call)(call)
}

// install must be called with b.mu held.
func (b *Binding) install() {
	b.stub.SetImplementation(b.dispatch)
}

// must be called with b.mu held.
func (b *Binding) mustBeAttached() {
	if b.detached {
		panic(fmt.Errorf("%w: %s", ErrDetached, b.stub.Name()))
	}
}

// selectAction picks the action answering call. Patterns are evaluated without holding
// b.mu, so predicates and matchers may use the stub; a match is claimed under the lock,
// and a Once rule another call claimed first is passed over.
func (b *Binding) selectAction(call Call) Action {
	name := b.stub.Name()
	candidates, fallback := b.snapshot()

	for _, rule := range candidates {
		ok, err := matchArgs(rule.Patterns, call.Args, rule.AssertOnMismatch)
		if err != nil {
			panic(b.decorate(err, rule))
		}

		if !ok || !b.claim(rule) {
			continue
		}

		b.registry.log.Debug().Str("stub", name).Int("rule", rule.ID).Str("at", rule.Location).Msg("rule matched")

		return rule.Action
	}

	return fallback()
}

// snapshot returns the rules that may still fire, in priority order, and the fallback
// to use if none of them matches.
func (b *Binding) snapshot() ([]*Rule, func() Action) {
	b.mu.Lock()
	defer b.mu.Unlock()

	candidates := make([]*Rule, 0, len(b.rules))

	for _, rule := range b.rules {
		if !rule.consumed() {
			candidates = append(candidates, rule)
		}
	}

	name := b.stub.Name()
	defaultAction := b.defaultAction
	needsRules := b.defaultNeedsRules && !b.hadPatternRules
	original := b.original

	return candidates, func() Action {
		switch {
		case defaultAction != nil && needsRules:
			panic(fmt.Errorf("%w: %s", ErrDefaultWithoutRules, name))
		case defaultAction != nil:
			b.registry.log.Debug().Str("stub", name).Msg("no rule matched, using default")

			return defaultAction
		case original != nil:
			b.registry.log.Debug().Str("stub", name).Msg("no rule matched, using original behavior")

			return original
		default:
			b.registry.log.Debug().Str("stub", name).Msg("no rule matched, returning no value")

			return noValue
		}
	}
}

// claim counts a firing of rule, unless it is a Once rule that already fired.
func (b *Binding) claim(rule *Rule) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rule.consumed() {
		return false
	}

	rule.fired++

	return true
}

func (b *Binding) decorate(err error, rule *Rule) error {
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		mismatch.Stub = b.stub.Name()
		mismatch.Location = rule.Location

		return mismatch
	}

	return fmt.Errorf("%s (rule declared at %s): %w", b.stub.Name(), rule.Location, err)
}

func noValue(Call) []any {
	return nil
}

func rulePriority(a, b *Rule) int {
	if a.Cardinality != b.Cardinality {
		if a.Cardinality == Once {
			return -1
		}

		return 1
	}

	return cmp.Compare(a.ID, b.ID)
}

// samePatterns reports whether two pattern lists declare the same rule. Matchers are
// compared as values, and predicates by the function they wrap.
func samePatterns(a, b []any) bool {
	return slices.EqualFunc(a, b, samePattern)
}

func samePattern(a, b any) bool {
	switch pa := a.(type) {
	case *Predicate:
		pb, ok := b.(*Predicate)

		return ok && (pa == pb || sameSource(pa.Source, pb.Source))
	case *AllArgsPredicate:
		pb, ok := b.(*AllArgsPredicate)

		return ok && (pa == pb || sameSource(pa.Source, pb.Source))
	}

	return deepEqual(a, b, false)
}

func sameSource(a, b any) bool {
	return a != nil && b != nil && funcIdentity(a) != nil && funcIdentity(a) == funcIdentity(b)
}
