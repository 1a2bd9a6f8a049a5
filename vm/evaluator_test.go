package vm

import (
	"testing"

	"rulesengine/bytecode"
	"rulesengine/rules/value"
)

func newTestEvaluator(w *bytecode.Writer, regs []bytecode.RegisterDef) *BytecodeEvaluator {
	bc := w.Build(regs)
	return New(bc)
}

func TestRunSubstringCodePoints(t *testing.T) {
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Str("hello world"))
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpSubstring))
	w.WriteByte(0)
	w.WriteByte(5)
	w.WriteByte(0)
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	if res.value.AsString() != "hello" {
		t.Fatalf("got %q", res.value.AsString())
	}
}

func TestRunSubstringOnNullPropagates(t *testing.T) {
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Null())
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpSubstring))
	w.WriteByte(0)
	w.WriteByte(3)
	w.WriteByte(0)
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.value.IsNull() {
		t.Fatalf("expected null, got %v", res.value)
	}
}

func TestRunMap3NormalizedLayout(t *testing.T) {
	w := bytecode.NewWriter()
	for _, kv := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		vi, _ := w.GetConstantIndex(value.Str(kv.v))
		w.EmitLoadConst(vi)
		ki, _ := w.GetConstantIndex(value.Str(kv.k))
		w.EmitLoadConst(ki)
	}
	w.WriteByte(byte(bytecode.OpMap3))
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	m := res.value.AsMap()
	if len(m) != 3 || m["a"].AsString() != "1" || m["b"].AsString() != "2" || m["c"].AsString() != "3" {
		t.Fatalf("unexpected map: %v", m)
	}
}

func TestRunJnnOrPopSkipsWhenNonNull(t *testing.T) {
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Int(5))
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpJnnOrPop))
	patchAt := w.Len()
	w.WriteShort(0)

	fallbackIdx, _ := w.GetConstantIndex(value.Int(99))
	w.EmitLoadConst(fallbackIdx)
	distance := w.Len() - (patchAt + 2)
	w.PatchShort(patchAt, uint16(distance))
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	if res.value.AsInt() != 5 {
		t.Fatalf("expected 5 (fallback skipped), got %v", res.value)
	}
}

func TestRunJnnOrPopFallsThroughWhenNull(t *testing.T) {
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Null())
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpJnnOrPop))
	patchAt := w.Len()
	w.WriteShort(0)

	fallbackIdx, _ := w.GetConstantIndex(value.Int(99))
	w.EmitLoadConst(fallbackIdx)
	distance := w.Len() - (patchAt + 2)
	w.PatchShort(patchAt, uint16(distance))
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	if res.value.AsInt() != 99 {
		t.Fatalf("expected 99 (fallback taken), got %v", res.value)
	}
}

func TestRunGetIndexOutOfBoundsIsNull(t *testing.T) {
	w := bytecode.NewWriter()
	a, _ := w.GetConstantIndex(value.Str("x"))
	b, _ := w.GetConstantIndex(value.Str("y"))
	w.EmitLoadConst(a)
	w.EmitLoadConst(b)
	w.WriteByte(byte(bytecode.OpList2))
	w.WriteByte(byte(bytecode.OpGetIndex))
	w.WriteByte(2) // == len(list)
	w.WriteByte(byte(bytecode.OpReturnValue))

	e := newTestEvaluator(w, nil)
	res, err := e.run(0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.value.IsNull() {
		t.Fatalf("expected null, got %v", res.value)
	}
}

func TestResetMissingRequiredParameter(t *testing.T) {
	w := bytecode.NewWriter()
	w.WriteByte(byte(bytecode.OpReturnValue)) // unreachable; Reset fails first
	bc := w.Build([]bytecode.RegisterDef{{Name: "Region", Required: true}})
	e := New(bc)

	if err := e.Reset(map[string]value.Value{}, map[string]value.Value{}); err == nil {
		t.Fatal("expected MissingRequiredParameter")
	}
}

func TestResetDefaultAndBuiltin(t *testing.T) {
	def := value.Str("us-east-1")
	regs := []bytecode.RegisterDef{
		{Name: "Region", DefaultValue: &def},
		{Name: "Partition", Builtin: "AWS::Partition"},
		{Name: "tmp", Temp: true},
	}
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Null())
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpReturnValue))
	bc := w.Build(regs)

	e := New(bc)
	context := map[string]value.Value{"AWS::Partition": value.Str("aws")}
	if err := e.Reset(context, map[string]value.Value{}); err != nil {
		t.Fatal(err)
	}
	if e.registers[0].AsString() != "us-east-1" {
		t.Fatalf("default not applied: %v", e.registers[0])
	}
	if e.registers[1].AsString() != "aws" {
		t.Fatalf("builtin not applied: %v", e.registers[1])
	}
	if !e.registers[2].IsNull() {
		t.Fatalf("temp register should start null: %v", e.registers[2])
	}
}

func TestResetBuiltinVariesPerRequest(t *testing.T) {
	regs := []bytecode.RegisterDef{{Name: "Endpoint", Builtin: "SDK::Endpoint"}}
	w := bytecode.NewWriter()
	idx, _ := w.GetConstantIndex(value.Null())
	w.EmitLoadConst(idx)
	w.WriteByte(byte(bytecode.OpReturnValue))
	bc := w.Build(regs)

	e := New(bc)
	if err := e.Reset(map[string]value.Value{"SDK::Endpoint": value.Str("https://a.example.com")}, nil); err != nil {
		t.Fatal(err)
	}
	if e.registers[0].AsString() != "https://a.example.com" {
		t.Fatalf("first request builtin = %v", e.registers[0])
	}
	if err := e.Reset(map[string]value.Value{"SDK::Endpoint": value.Str("https://b.example.com")}, nil); err != nil {
		t.Fatal(err)
	}
	if e.registers[0].AsString() != "https://b.example.com" {
		t.Fatalf("second request builtin should vary independently: %v", e.registers[0])
	}
}

func TestResolveResultNegativeIndexIsNoMatchSentinel(t *testing.T) {
	bc := bytecode.NewWriter().Build(nil)
	e := New(bc)
	ep, err := e.ResolveResult(-1)
	if err != nil {
		t.Fatal(err)
	}
	if ep != nil {
		t.Fatalf("expected nil endpoint for negative result index, got %v", ep)
	}
}

func TestUriEncodeZeroPadsLowByteValues(t *testing.T) {
	if got := uriEncode("\t\n"); got != "%09%0A" {
		t.Fatalf("uriEncode(tab,newline) = %q", got)
	}
}

func TestUriEncodeUnreservedSet(t *testing.T) {
	if got := uriEncode("a b/c"); got != "a%20b%2Fc" {
		t.Fatalf("uriEncode = %q", got)
	}
}

func TestIsValidHostLabel(t *testing.T) {
	if !isValidHostLabel("my-bucket", false) {
		t.Fatal("expected valid single label")
	}
	if isValidHostLabel("my-bucket.example", false) {
		t.Fatal("dots should be rejected when allowDots is false")
	}
	if !isValidHostLabel("my-bucket.example", true) {
		t.Fatal("dots should be accepted when allowDots is true")
	}
	if isValidHostLabel("-leading-dash", false) {
		t.Fatal("leading dash must be rejected")
	}
}
