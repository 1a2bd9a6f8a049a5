package bytecode

import (
	"testing"

	"rulesengine/rules/value"
)

func TestWriterConstantPoolDedup(t *testing.T) {
	w := NewWriter()
	i1, err := w.GetConstantIndex(value.Str("us-east-1"))
	if err != nil {
		t.Fatal(err)
	}
	i2, err := w.GetConstantIndex(value.Str("us-east-1"))
	if err != nil {
		t.Fatal(err)
	}
	if i1 != i2 {
		t.Fatalf("expected dedup, got %d and %d", i1, i2)
	}
	i3, err := w.GetConstantIndex(value.Str("us-west-2"))
	if err != nil {
		t.Fatal(err)
	}
	if i3 == i1 {
		t.Fatal("distinct values must not share an index")
	}
}

func TestWriterConstantPoolOverflow(t *testing.T) {
	w := NewWriter()
	for i := 0; i < maxConstantPoolSize; i++ {
		if _, err := w.GetConstantIndex(value.Int(int64(i))); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if _, err := w.GetConstantIndex(value.Int(int64(maxConstantPoolSize))); err == nil {
		t.Fatal("expected ConstantPoolOverflow")
	}
}

func TestEmitLoadConstPicksWidth(t *testing.T) {
	w := NewWriter()
	w.EmitLoadConst(10)
	if len(w.instructions) != 2 || OpCode(w.instructions[0]) != OpLoadConst {
		t.Fatalf("expected single-byte LOAD_CONST, got %v", w.instructions)
	}

	w2 := NewWriter()
	w2.EmitLoadConst(300)
	if len(w2.instructions) != 3 || OpCode(w2.instructions[0]) != OpLoadConstW {
		t.Fatalf("expected LOAD_CONST_W, got %v", w2.instructions)
	}
}

func TestCheckJumpOffset(t *testing.T) {
	if err := CheckJumpOffset(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckJumpOffset(-1); err == nil {
		t.Fatal("expected JumpTooFar for negative distance")
	}
	if err := CheckJumpOffset(maxJumpOffset); err == nil {
		t.Fatal("expected JumpTooFar at the boundary")
	}
}

func TestOpcodeFixedPoints(t *testing.T) {
	if OpReturnValue != 40 {
		t.Fatalf("RETURN_VALUE must be 40, got %d", OpReturnValue)
	}
	if opReserved41 != 41 {
		t.Fatalf("reserved gap must be 41, got %d", opReserved41)
	}
	if OpJnnOrPop != 42 {
		t.Fatalf("JNN_OR_POP must be 42, got %d", OpJnnOrPop)
	}
}

func TestOpcodeStringUnknown(t *testing.T) {
	if got := opReserved41.String(); got != "UNKNOWN_INSTRUCTION" {
		t.Fatalf("reserved opcode should disassemble as UNKNOWN_INSTRUCTION, got %q", got)
	}
}

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteByte(byte(OpReturnValue))
	bc := w.Build([]RegisterDef{{Name: "Region"}, {Name: "tmp", Temp: true}})

	encoded := bc.Encode()
	version, paramCount, registerCount, instructions := DecodeHeader(encoded)
	if version != 1 {
		t.Fatalf("version = %d", version)
	}
	if paramCount != 1 {
		t.Fatalf("paramCount = %d, want 1 (tmp is excluded)", paramCount)
	}
	if registerCount != 2 {
		t.Fatalf("registerCount = %d, want 2", registerCount)
	}
	if len(instructions) != len(bc.Instructions) {
		t.Fatalf("instructions length mismatch: %d vs %d", len(instructions), len(bc.Instructions))
	}
}
