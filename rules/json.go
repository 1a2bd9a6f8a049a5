// JSON decoding for Ruleset and Expr. This is the input format cmd/rulesc
// reads from disk; nothing in the compiler or VM packages depends on it.
// encoding/json is used because no JSON library appears anywhere in the
// retrieved corpus to prefer instead (see DESIGN.md).
package rules

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"rulesengine/rules/value"
)

// sortedKeys returns m's keys in a stable order, so compiling the same
// ruleset JSON twice emits byte-identical bytecode regardless of Go's
// randomized map iteration order.
func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

type jsonParameter struct {
	Name     string          `json:"name"`
	Required bool            `json:"required"`
	Default  *jsonLitValue   `json:"default,omitempty"`
	Builtin  string          `json:"builtin,omitempty"`
}

type jsonRuleset struct {
	Parameters []jsonParameter   `json:"parameters"`
	Conditions []jsonCondition   `json:"conditions"`
	Results    []json.RawMessage `json:"results"`
}

type jsonCondition struct {
	Expr       json.RawMessage `json:"expr"`
	ResultName string          `json:"resultName,omitempty"`
}

type jsonLitValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (l jsonLitValue) toValue() (value.Value, error) {
	switch l.Type {
	case "null":
		return value.Null(), nil
	case "bool":
		var b bool
		if err := json.Unmarshal(l.Value, &b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case "int":
		var i int64
		if err := json.Unmarshal(l.Value, &i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case "double":
		var f float64
		if err := json.Unmarshal(l.Value, &f); err != nil {
			return value.Value{}, err
		}
		return value.Double(f), nil
	case "string":
		var s string
		if err := json.Unmarshal(l.Value, &s); err != nil {
			return value.Value{}, err
		}
		return value.Str(s), nil
	default:
		return value.Value{}, fmt.Errorf("rules: unknown literal type %q", l.Type)
	}
}

// DecodeRuleset parses raw JSON into a Ruleset.
func DecodeRuleset(raw []byte) (Ruleset, error) {
	var jr jsonRuleset
	if err := json.Unmarshal(raw, &jr); err != nil {
		return Ruleset{}, err
	}

	rs := Ruleset{Parameters: make([]Parameter, 0, len(jr.Parameters))}
	for _, p := range jr.Parameters {
		param := Parameter{Name: p.Name, Required: p.Required, Builtin: p.Builtin}
		if p.Default != nil {
			v, err := p.Default.toValue()
			if err != nil {
				return Ruleset{}, err
			}
			param.Default = &v
		}
		rs.Parameters = append(rs.Parameters, param)
	}

	for _, c := range jr.Conditions {
		e, err := DecodeExpr(c.Expr)
		if err != nil {
			return Ruleset{}, err
		}
		rs.Conditions = append(rs.Conditions, Condition{Expr: e, ResultName: c.ResultName})
	}

	for _, raw := range jr.Results {
		r, err := decodeResult(raw)
		if err != nil {
			return Ruleset{}, err
		}
		rs.Results = append(rs.Results, r)
	}

	return rs, nil
}

type jsonResultEnvelope struct {
	Type       string                     `json:"type"`
	URL        json.RawMessage            `json:"url,omitempty"`
	Headers    map[string][]json.RawMessage `json:"headers,omitempty"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Message    json.RawMessage            `json:"message,omitempty"`
}

func decodeResult(raw []byte) (Result, error) {
	var env jsonResultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "endpoint":
		url, err := DecodeExpr(env.URL)
		if err != nil {
			return nil, err
		}
		er := EndpointResult{URL: url}
		if len(env.Headers) > 0 {
			er.Headers = make(map[string][]Expr, len(env.Headers))
			er.HeaderNames = sortedKeys(env.Headers)
			for _, name := range er.HeaderNames {
				var decoded []Expr
				for _, raw := range env.Headers[name] {
					e, err := DecodeExpr(raw)
					if err != nil {
						return nil, err
					}
					decoded = append(decoded, e)
				}
				er.Headers[name] = decoded
			}
		}
		if len(env.Properties) > 0 {
			er.Properties = make(map[string]Expr, len(env.Properties))
			er.PropertyNames = sortedKeys(env.Properties)
			for _, name := range er.PropertyNames {
				e, err := DecodeExpr(env.Properties[name])
				if err != nil {
					return nil, err
				}
				er.Properties[name] = e
			}
		}
		return er, nil
	case "error":
		msg, err := DecodeExpr(env.Message)
		if err != nil {
			return nil, err
		}
		return ErrorResult{Message: msg}, nil
	case "noMatch":
		return NoMatchResult{}, nil
	default:
		return nil, fmt.Errorf("rules: unknown result type %q", env.Type)
	}
}

type jsonExprEnvelope struct {
	Kind string `json:"kind"`

	// ref
	Name string `json:"name,omitempty"`

	// lit
	Lit *jsonLitValue `json:"lit,omitempty"`

	// strTemplate
	Segments []jsonTemplateSegment `json:"segments,omitempty"`

	// tuple
	Elements []json.RawMessage `json:"elements,omitempty"`

	// record
	Entries []jsonRecordEntry `json:"entries,omitempty"`

	// not, isSet
	Inner json.RawMessage `json:"inner,omitempty"`

	// booleanEquals, stringEquals, coalesce
	A json.RawMessage `json:"a,omitempty"`
	B json.RawMessage `json:"b,omitempty"`

	// substring
	Str     json.RawMessage `json:"str,omitempty"`
	Start   uint8           `json:"start,omitempty"`
	End     uint8           `json:"end,omitempty"`
	Reverse bool            `json:"reverse,omitempty"`

	// isValidHostLabel
	AllowDots json.RawMessage `json:"allowDots,omitempty"`

	// split
	Delimiter json.RawMessage `json:"delimiter,omitempty"`
	Limit     json.RawMessage `json:"limit,omitempty"`

	// call
	FuncName string            `json:"func,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`

	// getAttr: either a structured Path array, or a compact dotted-path
	// string such as "foo.bar[2]" decoded via value.ParseAttr — the two
	// forms lower to identical bytecode.
	Target   json.RawMessage `json:"target,omitempty"`
	Path     []jsonPathPart  `json:"path,omitempty"`
	AttrPath string          `json:"attrPath,omitempty"`
}

type jsonTemplateSegment struct {
	Literal string          `json:"literal,omitempty"`
	Dynamic json.RawMessage `json:"dynamic,omitempty"`
}

type jsonRecordEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type jsonPathPart struct {
	Key      string `json:"key,omitempty"`
	HasIndex bool   `json:"hasIndex,omitempty"`
	Index    uint8  `json:"index,omitempty"`
}

// DecodeExpr parses one JSON expression node, recursing into its children.
func DecodeExpr(raw []byte) (Expr, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("rules: empty expression")
	}
	var env jsonExprEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case "ref":
		return Ref{Name: env.Name}, nil
	case "lit":
		v, err := env.Lit.toValue()
		if err != nil {
			return nil, err
		}
		return Lit{Value: v}, nil
	case "strTemplate":
		segs := make([]TemplateSegment, 0, len(env.Segments))
		for _, s := range env.Segments {
			if len(s.Dynamic) == 0 {
				segs = append(segs, TemplateSegment{Literal: s.Literal})
				continue
			}
			d, err := DecodeExpr(s.Dynamic)
			if err != nil {
				return nil, err
			}
			segs = append(segs, TemplateSegment{Dynamic: d})
		}
		return StrTemplate{Segments: segs}, nil
	case "tuple":
		elems := make([]Expr, 0, len(env.Elements))
		for _, raw := range env.Elements {
			e, err := DecodeExpr(raw)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return Tuple{Elements: elems}, nil
	case "record":
		entries := make([]RecordEntry, 0, len(env.Entries))
		for _, e := range env.Entries {
			v, err := DecodeExpr(e.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, RecordEntry{Key: e.Key, Value: v})
		}
		return Record{Entries: entries}, nil
	case "not":
		inner, err := DecodeExpr(env.Inner)
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	case "isSet":
		inner, err := DecodeExpr(env.Inner)
		if err != nil {
			return nil, err
		}
		return IsSet{Inner: inner}, nil
	case "booleanEquals":
		a, b, err := decodePair(env.A, env.B)
		if err != nil {
			return nil, err
		}
		return BooleanEquals{A: a, B: b}, nil
	case "stringEquals":
		a, b, err := decodePair(env.A, env.B)
		if err != nil {
			return nil, err
		}
		return StringEquals{A: a, B: b}, nil
	case "substring":
		str, err := DecodeExpr(env.Str)
		if err != nil {
			return nil, err
		}
		return Substring{Str: str, Start: env.Start, End: env.End, Reverse: env.Reverse}, nil
	case "isValidHostLabel":
		str, err := DecodeExpr(env.Str)
		if err != nil {
			return nil, err
		}
		allowDots, err := DecodeExpr(env.AllowDots)
		if err != nil {
			return nil, err
		}
		return IsValidHostLabel{Str: str, AllowDots: allowDots}, nil
	case "parseURL":
		str, err := DecodeExpr(env.Str)
		if err != nil {
			return nil, err
		}
		return ParseURL{Str: str}, nil
	case "uriEncode":
		str, err := DecodeExpr(env.Str)
		if err != nil {
			return nil, err
		}
		return UriEncode{Str: str}, nil
	case "split":
		str, err := DecodeExpr(env.Str)
		if err != nil {
			return nil, err
		}
		delim, err := DecodeExpr(env.Delimiter)
		if err != nil {
			return nil, err
		}
		limit, err := DecodeExpr(env.Limit)
		if err != nil {
			return nil, err
		}
		return Split{Str: str, Delimiter: delim, Limit: limit}, nil
	case "coalesce":
		a, b, err := decodePair(env.A, env.B)
		if err != nil {
			return nil, err
		}
		return Coalesce{A: a, B: b}, nil
	case "call":
		args := make([]Expr, 0, len(env.Args))
		for _, raw := range env.Args {
			a, err := DecodeExpr(raw)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return Call{Name: env.FuncName, Args: args}, nil
	case "getAttr":
		target, err := DecodeExpr(env.Target)
		if err != nil {
			return nil, err
		}
		if len(env.Path) == 0 && env.AttrPath != "" {
			path, err := decodeAttrPath(env.AttrPath)
			if err != nil {
				return nil, err
			}
			return GetAttr{Target: target, Path: path}, nil
		}
		path := make([]PathPart, 0, len(env.Path))
		for _, p := range env.Path {
			path = append(path, PathPart{Key: p.Key, HasIndex: p.HasIndex, Index: p.Index})
		}
		return GetAttr{Target: target, Path: path}, nil
	default:
		return nil, fmt.Errorf("rules: unknown expression kind %q", env.Kind)
	}
}

// decodeAttrPath parses a compact dotted-path string via value.ParseAttr
// and flattens it into the same []PathPart shape the structured "path"
// array produces, so the compiler's GetAttr lowering never has to know
// which form a ruleset author used.
func decodeAttrPath(s string) ([]PathPart, error) {
	expr, err := value.ParseAttr(s)
	if err != nil {
		return nil, err
	}
	leaves := expr.Flatten()
	path := make([]PathPart, 0, len(leaves))
	for _, leaf := range leaves {
		switch leaf.Kind() {
		case value.AttrKey:
			path = append(path, PathPart{Key: leaf.Key()})
		case value.AttrIndex:
			path = append(path, PathPart{HasIndex: true, Index: leaf.IndexValue()})
		}
	}
	return path, nil
}

func decodePair(araw, braw []byte) (Expr, Expr, error) {
	a, err := DecodeExpr(araw)
	if err != nil {
		return nil, nil, err
	}
	b, err := DecodeExpr(braw)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
