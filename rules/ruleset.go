// Package rules defines the structural contract the compiler ingests: a
// ruleset's parameters, its list of boolean conditions, and its list of
// results. spec.md places the high-level parser and decision-tree
// representation out of scope as an external collaborator; this is the
// minimal data shape that collaborator is expected to hand the compiler.
package rules

import "rulesengine/rules/value"

// Parameter declares one named input the ruleset's register filler may
// populate: a required parameter with no default/builtin is a compile-time
// contract that every evaluation must supply it (or fail at register-fill
// time with MissingRequiredParameter).
type Parameter struct {
	Name     string
	Required bool
	Default  *value.Value // nil if no default
	Builtin  string       // empty if not builtin-backed
}

// Ruleset is the compiler's sole input, alongside a function registry and
// a list of extensions (passed separately to Compile).
type Ruleset struct {
	Parameters []Parameter
	Conditions []Condition
	Results    []Result
}

// Condition is a boolean-typed expression with an optional named result
// binding: if ResultName is non-empty, the condition's value is also
// written into that temporary register for later conditions/results to
// reference by name.
type Condition struct {
	Expr       Expr
	ResultName string
}

// Result is one of EndpointResult, ErrorResult, or NoMatchResult.
type Result interface{ isResult() }

// EndpointResult describes a concrete endpoint to construct: a url
// expression, an optional headers map (each value a list of string
// expressions), and an optional properties map (arbitrary expression
// tree). Map iteration order for Headers/Properties is the order recorded
// in HeaderNames/PropertyNames (Go maps do not iterate in insertion order).
type EndpointResult struct {
	URL           Expr
	HeaderNames   []string
	Headers       map[string][]Expr
	PropertyNames []string
	Properties    map[string]Expr
}

func (EndpointResult) isResult() {}

// ErrorResult describes a modeled error: its message expression must
// evaluate to a string.
type ErrorResult struct {
	Message Expr
}

func (ErrorResult) isResult() {}

// NoMatchResult represents an explicit "no match" outcome.
type NoMatchResult struct{}

func (NoMatchResult) isResult() {}
