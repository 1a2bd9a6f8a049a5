// Package disasm renders a compiled Bytecode as human-readable text, the
// way the teacher's -debug flag dumps its own bytecode before running it.
// It is diagnostic tooling only — nothing in the compiler or VM packages
// depends on it.
package disasm

import (
	"fmt"
	"strings"

	"rulesengine/bytecode"
)

// operandWidths gives the number of operand bytes following each opcode
// that isn't already handled as a special case below.
var operandWidths = map[bytecode.OpCode]int{
	bytecode.OpLoadConst:           1,
	bytecode.OpLoadConstW:          2,
	bytecode.OpLoadRegister:        1,
	bytecode.OpSetRegister:         1,
	bytecode.OpTestRegisterIsSet:   1,
	bytecode.OpTestRegisterNotSet:  1,
	bytecode.OpTestRegisterIsTrue:  1,
	bytecode.OpTestRegisterIsFalse: 1,
	bytecode.OpListN:               1,
	bytecode.OpMapN:                1,
	bytecode.OpFn0:                 2,
	bytecode.OpFn1:                 2,
	bytecode.OpFn2:                 2,
	bytecode.OpFn3:                 2,
	bytecode.OpFn:                  2,
	bytecode.OpSubstring:           3,
	bytecode.OpGetProperty:         2,
	bytecode.OpGetIndex:            1,
	bytecode.OpGetPropertyReg:      3,
	bytecode.OpGetIndexReg:         2,
	bytecode.OpJnnOrPop:            2,
	bytecode.OpReturnEndpoint:      1,
	bytecode.OpResolveTemplate:     3,
}

// Disassemble renders bc's instruction stream, one line per opcode, with
// condition/result entry points annotated at the offsets they start.
func Disassemble(bc *bytecode.Bytecode) string {
	var b strings.Builder

	condAt := make(map[int]int, len(bc.ConditionOffsets))
	for i, off := range bc.ConditionOffsets {
		condAt[int(off)] = i
	}
	resAt := make(map[int]int, len(bc.ResultOffsets))
	for i, off := range bc.ResultOffsets {
		resAt[int(off)] = i
	}

	ins := bc.Instructions
	pc := 0
	for pc < len(ins) {
		if i, ok := condAt[pc]; ok {
			fmt.Fprintf(&b, "; condition[%d]:\n", i)
		}
		if i, ok := resAt[pc]; ok {
			fmt.Fprintf(&b, "; result[%d]:\n", i)
		}

		op := bytecode.OpCode(ins[pc])
		start := pc
		pc++

		width, known := operandWidths[op]
		if !known {
			width = 0
		}
		operands := ins[pc : pc+width]
		pc += width

		fmt.Fprintf(&b, "%6d  %-24s %s\n", start, op.String(), formatOperands(op, operands))
	}

	fmt.Fprintf(&b, "; constants: %d, functions: %d, registers: %d\n",
		len(bc.ConstantPool), len(bc.FunctionTable), len(bc.RegisterDefinitions))

	return b.String()
}

func formatOperands(op bytecode.OpCode, operands []byte) string {
	if len(operands) == 0 {
		return ""
	}
	switch op {
	case bytecode.OpLoadConstW, bytecode.OpGetProperty:
		return fmt.Sprintf("%d", u16(operands))
	case bytecode.OpGetPropertyReg:
		return fmt.Sprintf("r%d %d", operands[0], u16(operands[1:]))
	case bytecode.OpJnnOrPop:
		return fmt.Sprintf("+%d", u16(operands))
	case bytecode.OpFn0, bytecode.OpFn1, bytecode.OpFn2, bytecode.OpFn3, bytecode.OpFn:
		return fmt.Sprintf("fn#%d", u16(operands))
	case bytecode.OpResolveTemplate:
		return fmt.Sprintf("argc=%d tmpl#%d", operands[0], u16(operands[1:]))
	default:
		parts := make([]string, len(operands))
		for i, o := range operands {
			parts[i] = fmt.Sprintf("%d", o)
		}
		return strings.Join(parts, " ")
	}
}

func u16(b []byte) int { return int(b[0]) | int(b[1])<<8 }
