// Package value implements the dynamic value domain shared by the
// compiler's constant pool and the VM's stack and register file:
//
//	null | Bool | Int64 | Double | String | List | Map | Uri | Template | AttrExpr
//
// Templates and attribute expressions only ever live in the constant pool;
// they never flow in from request parameters. Lists may hold nulls, maps
// never do (the VM's MAPn opcodes skip an entry whose value is null
// instead of writing it).
package value

import (
	"fmt"
	"strconv"
)

// Kind tags which variant of the value domain a Value currently holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDouble
	KindString
	KindList
	KindMap
	KindUri
	KindTemplate
	KindAttrExpr
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindUri:
		return "uri"
	case KindTemplate:
		return "template"
	case KindAttrExpr:
		return "attrExpr"
	default:
		return "unknown"
	}
}

// Value is the tagged union that flows through the constant pool, the VM
// stack and the register file. It is a value type (not a pointer) for the
// scalar variants so that comparing and copying small values never
// allocates; the composite variants (List, Map, Uri, Template, AttrExpr)
// hold a reference to heap-allocated state.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
	uri  *Uri
	tmpl *Template
	attr *AttrExpr
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt64, i: i} }

// Double wraps a 64-bit float.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// Str wraps a string.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a list of values. The slice is retained, not copied.
func List(elems []Value) Value { return Value{kind: KindList, list: elems} }

// Map wraps a string-keyed map of values. The VM's MAPn opcodes never
// write a null value; callers constructing a Map directly must uphold the
// same invariant.
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// FromUri wraps a parsed Uri.
func FromUri(u *Uri) Value { return Value{kind: KindUri, uri: u} }

// FromTemplate wraps a constant-pool template.
func FromTemplate(t *Template) Value { return Value{kind: KindTemplate, tmpl: t} }

// FromAttrExpr wraps a constant-pool attribute expression.
func FromAttrExpr(a *AttrExpr) Value { return Value{kind: KindAttrExpr, attr: a} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() bool { return v.b }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsDouble() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsList() []Value { return v.list }
func (v Value) AsMap() map[string]Value { return v.m }
func (v Value) AsUri() *Uri { return v.uri }
func (v Value) AsTemplate() *Template { return v.tmpl }
func (v Value) AsAttrExpr() *AttrExpr { return v.attr }

// Truthy reports whether v is neither null nor Bool(false) — the
// three-valued truthiness rule that governs control flow throughout the
// engine.
func (v Value) Truthy() bool {
	if v.kind == KindNull {
		return false
	}
	if v.kind == KindBool {
		return v.b
	}
	return true
}

// Equal implements structural equality over the value domain. Cross-type
// equality is always false.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := o.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	case KindUri:
		return v.uri != nil && o.uri != nil && v.uri.Raw == o.uri.Raw
	case KindTemplate:
		return v.tmpl != nil && o.tmpl != nil && v.tmpl.Canonical() == o.tmpl.Canonical()
	case KindAttrExpr:
		return v.attr != nil && o.attr != nil && v.attr.String() == o.attr.String()
	default:
		return false
	}
}

// String renders v in its canonical printable form: booleans as
// "true"/"false", null as the literal "null", numbers in a
// locale-independent decimal form. Used by the string-template resolver
// and by diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	case KindUri:
		return v.uri.Raw
	case KindTemplate:
		return v.tmpl.Canonical()
	case KindAttrExpr:
		return v.attr.String()
	default:
		return "<unknown>"
	}
}
