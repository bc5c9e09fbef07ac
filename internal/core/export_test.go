package core

// MatchArgs exposes the evaluator fold to the external test package.
var MatchArgs = matchArgs //nolint:gochecknoglobals // test-only export
