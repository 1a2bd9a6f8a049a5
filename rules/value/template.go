package value

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TemplateSegment is either a literal string or an interpolation slot.
type TemplateSegment struct {
	Literal string
	IsSlot  bool
}

// Template is a pre-parsed string-interpolation skeleton: an ordered
// sequence of segments plus the count of interpolation slots
// (ExpressionCount). At runtime the VM resolves it by popping exactly that
// many values off the stack and concatenating them with the literal
// segments in order.
type Template struct {
	Segments        []TemplateSegment
	ExpressionCount int
	canonical       string
}

// NewTemplate builds a Template from its segments and a canonical string
// used for constant-pool interning. The compiler passes the literal
// skeleton with "{}" standing in for each slot.
func NewTemplate(segments []TemplateSegment, canonical string) *Template {
	count := 0
	for _, s := range segments {
		if s.IsSlot {
			count++
		}
	}
	return &Template{Segments: segments, ExpressionCount: count, canonical: canonical}
}

// Canonical returns the canonical string given to NewTemplate, used for
// constant-pool deduplication.
func (t *Template) Canonical() string { return t.canonical }

// Resolve concatenates t's literal segments with args (one per slot, in
// source order) using sb as scratch space. Dynamic segments are
// Unicode-normalized (NFC) before concatenation so that combining-character
// sequences compare and display consistently regardless of how the
// upstream value was encoded.
func (t *Template) Resolve(sb *strings.Builder, args []Value) string {
	sb.Reset()
	argIdx := 0
	for _, seg := range t.Segments {
		if !seg.IsSlot {
			sb.WriteString(seg.Literal)
			continue
		}
		sb.WriteString(norm.NFC.String(args[argIdx].String()))
		argIdx++
	}
	return sb.String()
}
