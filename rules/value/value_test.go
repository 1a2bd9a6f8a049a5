package value

import (
	"strings"
	"testing"
)

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", Int(0), true},
		{"empty string", Str(""), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s: Truthy() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same int", Int(3), Int(3), true},
		{"different int", Int(3), Int(4), false},
		{"int vs double", Int(3), Double(3), false},
		{"equal strings", Str("x"), Str("x"), true},
		{"equal lists", List([]Value{Int(1), Str("a")}), List([]Value{Int(1), Str("a")}), true},
		{"different length lists", List([]Value{Int(1)}), List([]Value{Int(1), Int(2)}), false},
		{"equal maps", Map(map[string]Value{"a": Int(1)}), Map(map[string]Value{"a": Int(1)}), true},
		{"different maps", Map(map[string]Value{"a": Int(1)}), Map(map[string]Value{"a": Int(2)}), false},
		{"null equals null", Null(), Null(), true},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%s: Equal() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	if Bool(true).String() != "true" {
		t.Fatal("expected true")
	}
	if Null().String() != "null" {
		t.Fatal("expected null")
	}
	if Int(42).String() != "42" {
		t.Fatal("expected 42")
	}
}

func TestUriParseAndProperties(t *testing.T) {
	u, ok := ParseURI("https://example.com:8443/a/b")
	if !ok {
		t.Fatal("expected successful parse")
	}
	if u.Scheme != "https" {
		t.Fatalf("scheme = %q", u.Scheme)
	}
	if u.Authority() != "example.com:8443" {
		t.Fatalf("authority = %q", u.Authority())
	}
	if got := u.NormalizedPath(); got != "/a/b/" {
		t.Fatalf("normalizedPath = %q", got)
	}

	if _, ok := ParseURI("not a uri"); ok {
		t.Fatal("expected parse failure")
	}
}

func TestUriIsIP(t *testing.T) {
	u, ok := ParseURI("https://10.0.0.1/")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if !u.IsIP() {
		t.Fatal("expected IsIP() true")
	}
}

func TestAttrExprParseAndEval(t *testing.T) {
	a, err := ParseAttr("foo.bar[1]")
	if err != nil {
		t.Fatalf("ParseAttr error: %v", err)
	}
	input := Map(map[string]Value{
		"foo": Map(map[string]Value{
			"bar": List([]Value{Str("x"), Str("y")}),
		}),
	})
	got := a.Eval(input)
	if got.Kind() != KindString || got.AsString() != "y" {
		t.Fatalf("Eval = %v", got)
	}
	if a.String() != "foo.bar[1]" {
		t.Fatalf("String() = %q", a.String())
	}
}

func TestAttrExprNullPropagation(t *testing.T) {
	a, err := ParseAttr("missing.bar")
	if err != nil {
		t.Fatalf("ParseAttr error: %v", err)
	}
	got := a.Eval(Map(map[string]Value{}))
	if !got.IsNull() {
		t.Fatalf("expected null, got %v", got)
	}
}

func TestTemplateResolve(t *testing.T) {
	tmpl := NewTemplate([]TemplateSegment{
		{Literal: "https://"},
		{IsSlot: true},
		{Literal: ".example.com"},
	}, "https://{}.example.com")

	var sb strings.Builder
	got := tmpl.Resolve(&sb, []Value{Str("bucket")})
	if got != "https://bucket.example.com" {
		t.Fatalf("Resolve = %q", got)
	}
}
