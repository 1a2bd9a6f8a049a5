package rules

import "rulesengine/rules/value"

// Expr is the expression tree the compiler lowers. The concrete variants
// below mirror the pattern table in spec.md §4.7 one-for-one: each has a
// dedicated lowering rule, with the generic Call variant as the catch-all
// for library functions that have no fused opcode.
type Expr interface{ isExpr() }

// Ref is a reference to a named register: a ruleset parameter or a
// temporary bound by an earlier condition's ResultName.
type Ref struct{ Name string }

func (Ref) isExpr() {}

// Lit is a literal null, bool, int64, double, or single-segment string —
// anything the constant pool can hold directly without going through the
// template machinery.
type Lit struct{ Value value.Value }

func (Lit) isExpr() {}

// TemplateSegment is one piece of a string literal: either a literal
// fragment or a dynamic expression to interpolate.
type TemplateSegment struct {
	Literal string
	Dynamic Expr // nil if this segment is a literal fragment
}

// StrTemplate is a string literal with N interpolation slots. A template of
// exactly one segment (a single literal, or a single dynamic expression)
// takes a degenerate lowering path instead of emitting RESOLVE_TEMPLATE;
// any other shape, including one slot surrounded by literals, emits it.
type StrTemplate struct{ Segments []TemplateSegment }

func (StrTemplate) isExpr() {}

// Tuple is a literal list.
type Tuple struct{ Elements []Expr }

func (Tuple) isExpr() {}

// RecordEntry is one key/value pair of a Record literal.
type RecordEntry struct {
	Key   string
	Value Expr
}

// Record is a literal map.
type Record struct{ Entries []RecordEntry }

func (Record) isExpr() {}

// Not negates a boolean expression.
type Not struct{ Inner Expr }

func (Not) isExpr() {}

// IsSet tests whether Inner is non-null.
type IsSet struct{ Inner Expr }

func (IsSet) isExpr() {}

// BooleanEquals compares two boolean expressions.
type BooleanEquals struct{ A, B Expr }

func (BooleanEquals) isExpr() {}

// StringEquals compares two string expressions.
type StringEquals struct{ A, B Expr }

func (StringEquals) isExpr() {}

// Substring slices Str by code points: [Start, End) if !Reverse, else
// [len-End, len-Start).
type Substring struct {
	Str           Expr
	Start, End    uint8
	Reverse       bool
}

func (Substring) isExpr() {}

// IsValidHostLabel validates Str as an RFC-1123 host label; AllowDots
// selects the two-mode grammar (a single label vs. a dotted sequence of
// labels).
type IsValidHostLabel struct {
	Str       Expr
	AllowDots Expr
}

func (IsValidHostLabel) isExpr() {}

// ParseURL parses Str into a Uri, or null on malformed input.
type ParseURL struct{ Str Expr }

func (ParseURL) isExpr() {}

// UriEncode percent-encodes Str per RFC 3986's unreserved set.
type UriEncode struct{ Str Expr }

func (UriEncode) isExpr() {}

// Split splits Str on Delimiter, at most Limit pieces.
type Split struct {
	Str       Expr
	Delimiter Expr
	Limit     Expr
}

func (Split) isExpr() {}

// Coalesce is the ruleset construct that resolves spec.md's JNN_OR_POP open
// question (SPEC_FULL.md §4.1): A is evaluated; if non-null its value is
// used; otherwise B is evaluated.
type Coalesce struct{ A, B Expr }

func (Coalesce) isExpr() {}

// Call is a generic library-function invocation: Name is resolved through
// the fn.Registry handed to Compile, at which point its arity determines
// which FN opcode variant is emitted.
type Call struct {
	Name string
	Args []Expr
}

func (Call) isExpr() {}

// PathPart is one step of a GetAttr path: exactly one of Key/Index is set.
type PathPart struct {
	Key      string
	HasIndex bool
	Index    uint8
}

// GetAttr applies a multi-step attribute path to Target.
type GetAttr struct {
	Target Expr
	Path   []PathPart
}

func (GetAttr) isExpr() {}
