package value

import (
	"fmt"
	"strconv"
	"strings"
)

// AttrKind tags the variant of an attribute expression.
type AttrKind uint8

const (
	AttrKey AttrKind = iota
	AttrIndex
	AttrAndThen
	AttrToString
)

// AttrExpr is a path expression such as "foo.bar[0]" applied to an opaque
// value at evaluation time. Every step null-propagates on its left operand:
// AndThen evaluates its left side first and only applies the right side if
// the left side produced a non-null value.
type AttrExpr struct {
	kind      AttrKind
	key       string
	index     uint8
	left      *AttrExpr
	right     *AttrExpr
	canonical string // only set for AttrToString
	inner     *AttrExpr
}

// Key constructs a map/Uri property lookup.
func Key(name string) *AttrExpr { return &AttrExpr{kind: AttrKey, key: name} }

// Index constructs a list index lookup.
func Index(i uint8) *AttrExpr { return &AttrExpr{kind: AttrIndex, index: i} }

// AndThen chains two attribute expressions: left is evaluated first; right
// is only applied to a non-null result.
func AndThen(left, right *AttrExpr) *AttrExpr {
	return &AttrExpr{kind: AttrAndThen, left: left, right: right}
}

// ToStringWrapper wraps inner purely for display purposes; evaluation
// delegates straight through.
func ToStringWrapper(canonical string, inner *AttrExpr) *AttrExpr {
	return &AttrExpr{kind: AttrToString, canonical: canonical, inner: inner}
}

// FromPath builds the canonical AttrExpr for a parsed dotted path: a
// single part yields ToString(canonical, part); multiple parts build a
// left-leaning AndThen chain with the full dotted form as the toString.
func FromPath(canonical string, parts []*AttrExpr) *AttrExpr {
	if len(parts) == 0 {
		return ToStringWrapper(canonical, nil)
	}
	if len(parts) == 1 {
		return ToStringWrapper(canonical, parts[0])
	}
	chain := parts[0]
	for _, p := range parts[1:] {
		chain = AndThen(chain, p)
	}
	return ToStringWrapper(canonical, chain)
}

// Kind reports which variant a is.
func (a *AttrExpr) Kind() AttrKind { return a.kind }

// Key returns the map/Uri property name for an AttrKey node; empty for any
// other kind.
func (a *AttrExpr) Key() string { return a.key }

// IndexValue returns the list index for an AttrIndex node; zero for any
// other kind.
func (a *AttrExpr) IndexValue() uint8 { return a.index }

// Flatten unwraps the ToString/AndThen wrapping FromPath builds and returns
// the ordered leaf AttrKey/AttrIndex nodes — the same part sequence a
// structured []PathPart decodes to, so a compact dotted path and a
// structured path lower to identical bytecode.
func (a *AttrExpr) Flatten() []*AttrExpr {
	switch a.kind {
	case AttrToString:
		if a.inner == nil {
			return nil
		}
		return a.inner.Flatten()
	case AttrAndThen:
		return append(a.left.Flatten(), a.right.Flatten()...)
	default:
		return []*AttrExpr{a}
	}
}

// Eval applies the attribute expression to v.
func (a *AttrExpr) Eval(v Value) Value {
	switch a.kind {
	case AttrKey:
		switch v.Kind() {
		case KindMap:
			if r, ok := v.AsMap()[a.key]; ok {
				return r
			}
			return Null()
		case KindUri:
			if r, ok := v.AsUri().GetProperty(a.key); ok {
				return r
			}
			return Null()
		default:
			return Null()
		}
	case AttrIndex:
		if v.Kind() != KindList {
			return Null()
		}
		list := v.AsList()
		if int(a.index) >= len(list) {
			return Null()
		}
		return list[a.index]
	case AttrAndThen:
		lv := a.left.Eval(v)
		if lv.IsNull() {
			return Null()
		}
		return a.right.Eval(lv)
	case AttrToString:
		if a.inner == nil {
			return v
		}
		return a.inner.Eval(v)
	default:
		return Null()
	}
}

// String returns the canonical dotted-path representation.
func (a *AttrExpr) String() string {
	switch a.kind {
	case AttrKey:
		return a.key
	case AttrIndex:
		return "[" + strconv.Itoa(int(a.index)) + "]"
	case AttrAndThen:
		right := a.right.String()
		if strings.HasPrefix(right, "[") {
			return a.left.String() + right
		}
		return a.left.String() + "." + right
	case AttrToString:
		return a.canonical
	default:
		return ""
	}
}

// ParseAttr parses a canonical dotted-path string such as "foo", "foo[3]",
// or "foo.bar[2].baz" into an AttrExpr.
func ParseAttr(path string) (*AttrExpr, error) {
	if path == "" {
		return nil, fmt.Errorf("attr: empty path")
	}
	var parts []*AttrExpr
	for _, rawPart := range strings.Split(path, ".") {
		name, indices, err := splitIndices(rawPart)
		if err != nil {
			return nil, err
		}
		if name != "" {
			parts = append(parts, Key(name))
		}
		for _, idx := range indices {
			parts = append(parts, Index(idx))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("attr: no path components in %q", path)
	}
	return FromPath(path, parts), nil
}

// splitIndices splits "bar[2][3]" into ("bar", [2,3]).
func splitIndices(part string) (string, []uint8, error) {
	name := part
	var indices []uint8
	for {
		open := strings.IndexByte(name, '[')
		if open < 0 {
			break
		}
		close := strings.IndexByte(name[open:], ']')
		if close < 0 {
			return "", nil, fmt.Errorf("attr: unterminated index in %q", part)
		}
		close += open
		n, err := strconv.Atoi(name[open+1 : close])
		if err != nil || n < 0 || n > 255 {
			return "", nil, fmt.Errorf("attr: invalid index in %q", part)
		}
		indices = append(indices, uint8(n))
		name = name[:open] + name[close+1:]
	}
	return name, indices, nil
}
