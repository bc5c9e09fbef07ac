package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/onsi/gomega/format"
)

// Configuration errors. These are panicked, wrapped with context, at declaration or
// dispatch time.
var (
	ErrAllArgsNotAlone = errors.New(
		"an all-arguments predicate must be the one and only pattern of a rule")
	ErrDefaultWithoutRules = errors.New(
		"default set without any argument patterns: combine it with CalledWith, " +
			"or use a Default* method to stub every call")
	ErrDetached      = errors.New("binding was reset: call When again to declare new rules")
	ErrNoAsyncResult = errors.New(
		"stub has neither a *Future result nor a trailing error result to resolve or reject through")
	ErrNotFunc    = errors.New("stub type is not a function")
	ErrResultType = errors.New("configured value does not fit the stub's result")
)

// MismatchError reports an asserted rule whose pattern did not match the actual
// argument. It is panicked out of the stub call.
type MismatchError struct {
	Stub     string
	Location string
	// Position is the argument index, or -1 for an all-arguments predicate.
	Position int
	Expected any
	Actual   any
	// Detail is the matcher's own failure text, if it produced one.
	Detail string
}

func (e *MismatchError) Error() string {
	expected := describe(e.Expected)
	actual := format.Object(e.Actual, 1)

	var msg strings.Builder

	msg.WriteString(e.Stub)

	if e.Position >= 0 {
		fmt.Fprintf(&msg, ": argument %d", e.Position)
	} else {
		msg.WriteString(": all arguments")
	}

	fmt.Fprintf(&msg, ": expected\n%s\nbut received\n%s", expected, actual)

	if e.Detail != "" {
		fmt.Fprintf(&msg, "\n%s", e.Detail)
	}

	if strings.Contains(expected, "\n") && strings.Contains(actual, "\n") {
		msg.WriteString("\n")
		msg.WriteString(textdiff.Unified("expected", "received", expected, actual))
	}

	if e.Location != "" {
		fmt.Fprintf(&msg, "\nrule declared at %s", e.Location)
	}

	return msg.String()
}

// UncalledRule describes a rule that never fired.
type UncalledRule struct {
	Stub     string
	Patterns []any
	Location string
}

// VerificationError lists every rule that never fired.
type VerificationError struct {
	Called   int
	Total    int
	Uncalled []UncalledRule
}

func (e *VerificationError) Error() string {
	var msg strings.Builder

	fmt.Fprintf(&msg, "%d of %d rules not called (called: %d/%d):",
		len(e.Uncalled), e.Total, e.Called, e.Total)

	for _, rule := range e.Uncalled {
		fmt.Fprintf(&msg, "\n  %s%s at %s", rule.Stub, describePatterns(rule.Patterns), rule.Location)
	}

	return msg.String()
}

func describe(pattern any) string {
	switch p := pattern.(type) {
	case *Predicate:
		return p.String()
	case *AllArgsPredicate:
		return p.String()
	}

	return format.Object(pattern, 1)
}

func describePatterns(patterns []any) string {
	parts := make([]string, 0, len(patterns))

	for _, p := range patterns {
		switch typed := p.(type) {
		case *Predicate:
			parts = append(parts, typed.String())
		case *AllArgsPredicate:
			parts = append(parts, typed.String())
		default:
			parts = append(parts, fmt.Sprintf("%#v", p))
		}
	}

	return "(" + strings.Join(parts, ", ") + ")"
}
