package core

// Action produces the results of a stub call. It has the shape of a stub's Impl, so
// rule actions, defaults, and original behaviors interchange freely.
type Action = Impl

// Cardinality says how many times a rule may fire.
type Cardinality int

// Cardinality values.
const (
	Unlimited Cardinality = iota
	Once
)

func (c Cardinality) String() string {
	if c == Once {
		return "once"
	}

	return "unlimited"
}

// Rule maps an argument pattern list to an action.
// Fields are fixed at creation; only the firing count changes, under the owning
// binding's lock.
type Rule struct {
	Patterns         []any
	Action           Action
	Cardinality      Cardinality
	AssertOnMismatch bool
	ID               int
	Location         string

	fired int
}

func (r *Rule) consumed() bool {
	return r.Cardinality == Once && r.fired > 0
}

// RuleState is a snapshot of a rule, for inspection and verification.
type RuleState struct {
	ID          int
	Patterns    []any
	Cardinality Cardinality
	Location    string
	Fired       int
}
