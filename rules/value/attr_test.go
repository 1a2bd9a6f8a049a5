package value

import "testing"

func TestAttrExprFlatten(t *testing.T) {
	expr, err := ParseAttr("foo.bar[2]")
	if err != nil {
		t.Fatal(err)
	}
	leaves := expr.Flatten()
	if len(leaves) != 3 {
		t.Fatalf("got %d leaves, want 3", len(leaves))
	}
	if leaves[0].Kind() != AttrKey || leaves[0].Key() != "foo" {
		t.Fatalf("leaf 0 = %+v", leaves[0])
	}
	if leaves[1].Kind() != AttrKey || leaves[1].Key() != "bar" {
		t.Fatalf("leaf 1 = %+v", leaves[1])
	}
	if leaves[2].Kind() != AttrIndex || leaves[2].IndexValue() != 2 {
		t.Fatalf("leaf 2 = %+v", leaves[2])
	}
}

func TestAttrExprFlattenSinglePart(t *testing.T) {
	expr, err := ParseAttr("region")
	if err != nil {
		t.Fatal(err)
	}
	leaves := expr.Flatten()
	if len(leaves) != 1 || leaves[0].Kind() != AttrKey || leaves[0].Key() != "region" {
		t.Fatalf("leaves = %+v", leaves)
	}
}

func TestAttrExprEvalMatchesFlattenedGetProperty(t *testing.T) {
	expr, err := ParseAttr("a.b")
	if err != nil {
		t.Fatal(err)
	}
	v := Map(map[string]Value{"a": Map(map[string]Value{"b": Str("x")})})
	if got := expr.Eval(v); got.AsString() != "x" {
		t.Fatalf("Eval = %v", got)
	}
}
