package bytecode

import (
	"encoding/binary"

	"rulesengine/rules/fn"
	"rulesengine/rules/value"
	"rulesengine/rulesengineerrors"
)

const (
	maxConstantPoolSize = 65536
	maxJumpOffset       = 65536
	maxRegisters        = 256
)

// RegisterDef is one entry of the Bytecode's register file: a stable
// small-integer slot either backing a named ruleset parameter (Temp=false)
// or an intermediate condition binding (Temp=true).
type RegisterDef struct {
	Name         string
	Required     bool
	DefaultValue *value.Value
	Builtin      string
	Temp         bool
}

// header is the optional fixed-size prefix spec.md §6 permits before the
// first instruction. When present, conditionOffsets/resultOffsets are
// recorded absolute from the start of instructions (i.e. NOT counting the
// header) — Encode/DecodeHeader add/strip it for an in-memory form only;
// it is not a stable on-disk format.
type header struct {
	Version       uint8
	ParamCount    uint8
	RegisterCount uint16
}

const headerSize = 4

// Bytecode is the immutable artifact a successful compile produces.
type Bytecode struct {
	Instructions        []byte
	ConstantPool        []value.Value
	FunctionTable       []fn.Fn
	RegisterDefinitions []RegisterDef
	ConditionOffsets    []uint32
	ResultOffsets       []uint32
}

// Encode serializes b to the in-memory wire form described in SPEC_FULL.md
// §4: a 4-byte header followed by the raw instruction stream. The constant
// pool, function table and register definitions are not part of this form
// (they carry host-side values/callables with no defined wire
// representation), so it is not a cross-process persistence format.
// Neither cmd/rulesc nor internal/disasm calls it; both work on
// Instructions directly.
func (b *Bytecode) Encode() []byte {
	out := make([]byte, headerSize+len(b.Instructions))
	out[0] = 1 // version
	out[1] = uint8(len(b.RegisterDefinitions) - countTemps(b.RegisterDefinitions))
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(b.RegisterDefinitions)))
	copy(out[headerSize:], b.Instructions)
	return out
}

func countTemps(defs []RegisterDef) int {
	n := 0
	for _, d := range defs {
		if d.Temp {
			n++
		}
	}
	return n
}

// DecodeHeader reads just the 4-byte header off the front of an Encode-d
// buffer, returning the instruction stream that follows it.
func DecodeHeader(buf []byte) (version uint8, paramCount uint8, registerCount uint16, instructions []byte) {
	if len(buf) < headerSize {
		return 0, 0, 0, nil
	}
	return buf[0], buf[1], binary.LittleEndian.Uint16(buf[2:4]), buf[headerSize:]
}

// Writer assembles instructions, the constant pool and the function table
// into an immutable Bytecode (C2). It is single-use: construct one per
// compile.
type Writer struct {
	instructions []byte
	constants    []value.Value
	functions    []fn.Fn
	funcIndex    map[string]int

	conditionOffsets []uint32
	resultOffsets    []uint32
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{funcIndex: make(map[string]int)}
}

// Len returns the current instruction buffer length — the offset the next
// WriteByte/WriteShort call will land at.
func (w *Writer) Len() int { return len(w.instructions) }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) { w.instructions = append(w.instructions, b) }

// WriteShort appends a little-endian u16.
func (w *Writer) WriteShort(v uint16) {
	w.instructions = append(w.instructions, byte(v), byte(v>>8))
}

// PatchShort overwrites the u16 at byte offset off (used to back-patch
// forward jump targets once they're known).
func (w *Writer) PatchShort(off int, v uint16) {
	w.instructions[off] = byte(v)
	w.instructions[off+1] = byte(v >> 8)
}

// MarkConditionStart records the current buffer length as condition i's
// entry offset. Must be called exactly before writing that condition's
// first opcode.
func (w *Writer) MarkConditionStart() {
	w.conditionOffsets = append(w.conditionOffsets, uint32(w.Len()))
}

// MarkResultStart records the current buffer length as a result's entry
// offset.
func (w *Writer) MarkResultStart() {
	w.resultOffsets = append(w.resultOffsets, uint32(w.Len()))
}

// GetConstantIndex interns v, returning its index in the constant pool.
// Deduplication is by structural value.Value equality (value.Equal already
// folds templates/attribute-expressions to their canonical string form).
func (w *Writer) GetConstantIndex(v value.Value) (int, error) {
	for i, c := range w.constants {
		if c.Equal(v) {
			return i, nil
		}
	}
	if len(w.constants) >= maxConstantPoolSize {
		return 0, rulesengineerrors.NewCompileError(rulesengineerrors.ConstantPoolOverflow, "")
	}
	w.constants = append(w.constants, v)
	return len(w.constants) - 1, nil
}

// EmitLoadConst selects LOAD_CONST when the index fits a single byte, else
// LOAD_CONST_W.
func (w *Writer) EmitLoadConst(idx int) {
	if idx < 256 {
		w.WriteByte(byte(OpLoadConst))
		w.WriteByte(byte(idx))
		return
	}
	w.WriteByte(byte(OpLoadConstW))
	w.WriteShort(uint16(idx))
}

// InternFunction interns a function descriptor by name, returning its
// stable index in the function table.
func (w *Writer) InternFunction(f fn.Fn) int {
	if idx, ok := w.funcIndex[f.Name]; ok {
		return idx
	}
	idx := len(w.functions)
	w.functions = append(w.functions, f)
	w.funcIndex[f.Name] = idx
	return idx
}

// CheckJumpOffset validates a forward jump distance before it is patched
// in, per spec.md §4.2's JumpTooFar failure mode.
func CheckJumpOffset(distance int) error {
	if distance < 0 || distance >= maxJumpOffset {
		return rulesengineerrors.NewCompileError(rulesengineerrors.JumpTooFar, "")
	}
	return nil
}

// Build assembles the immutable Bytecode from everything recorded so far.
func (w *Writer) Build(registers []RegisterDef) *Bytecode {
	return &Bytecode{
		Instructions:        w.instructions,
		ConstantPool:        w.constants,
		FunctionTable:       w.functions,
		RegisterDefinitions: registers,
		ConditionOffsets:    w.conditionOffsets,
		ResultOffsets:       w.resultOffsets,
	}
}
