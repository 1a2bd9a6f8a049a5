// Package bytecode defines the fixed, single-byte opcode set (C1) and the
// writer/constant-pool machinery (C2) that assembles it into an immutable
// Bytecode artifact. Every multi-byte operand is unsigned little-endian;
// every single-byte operand is unsigned, exactly as spec.md §4.1 requires.
package bytecode

// OpCode is a single-byte instruction tag.
type OpCode byte

const (
	// Constants & registers.
	OpLoadConst    OpCode = iota // [i:u8]
	OpLoadConstW                 // [i:u16 LE]
	OpLoadRegister               // [r:u8]
	OpSetRegister                // [r:u8] — writes top of stack without popping

	// Logic / predicates.
	OpNot           // pop 1, push 1
	OpIsSet         // pop 1, push 1
	OpIsTrue        // pop 1, push 1
	OpEquals        // pop 2, push 1
	OpStringEquals  // pop 2, push 1
	OpBooleanEquals // pop 2, push 1

	OpTestRegisterIsSet   // [r:u8]
	OpTestRegisterNotSet  // [r:u8]
	OpTestRegisterIsTrue  // [r:u8]
	OpTestRegisterIsFalse // [r:u8]

	// Aggregation.
	OpList0
	OpList1
	OpList2
	OpListN // [n:u8]
	OpMap0
	OpMap1
	OpMap2
	OpMap3
	OpMap4
	OpMapN // [n:u8]

	// Template.
	OpResolveTemplate // [argCount:u8, templateIndex:u16 LE]

	// Functions.
	OpFn0 // [f:u16 LE]
	OpFn1 // [f:u16 LE]
	OpFn2 // [f:u16 LE]
	OpFn3 // [f:u16 LE]
	OpFn  // [f:u16 LE] — variadic, arity from functionTable[f].Arity

	// Built-in fast-paths.
	OpSubstring        // [start:u8, end:u8, reverse:u8]
	OpIsValidHostLabel // pop 2 (string, allowDots), push 1
	OpParseURL         // pop 1, push 1
	OpUriEncode        // pop 1, push 1
	OpSplit            // pop 3 (string, delimiter, limit), push 1

	// Attributes.
	OpGetProperty    // [name:u16 LE]
	OpGetIndex       // [i:u8]
	OpGetPropertyReg // [r:u8, name:u16 LE]
	OpGetIndexReg    // [r:u8, i:u8]

	// Control flow & termination. RETURN_VALUE is pinned at 40 and
	// JNN_OR_POP at 42 per spec.md §9; opcode 41 is an intentional,
	// permanently unused gap.
	OpReturnError // pop 1 (message string)
	OpReturnValue // pop 1

	opReserved41 // unused — treated as UnknownInstruction if ever decoded

	OpJnnOrPop       // [offset:u16 LE]
	OpReturnEndpoint // [flags:u8]
)

// String returns the opcode's mnemonic, used by the disassembler.
func (op OpCode) String() string {
	switch op {
	case OpLoadConst:
		return "LOAD_CONST"
	case OpLoadConstW:
		return "LOAD_CONST_W"
	case OpLoadRegister:
		return "LOAD_REGISTER"
	case OpSetRegister:
		return "SET_REGISTER"
	case OpNot:
		return "NOT"
	case OpIsSet:
		return "ISSET"
	case OpIsTrue:
		return "IS_TRUE"
	case OpEquals:
		return "EQUALS"
	case OpStringEquals:
		return "STRING_EQUALS"
	case OpBooleanEquals:
		return "BOOLEAN_EQUALS"
	case OpTestRegisterIsSet:
		return "TEST_REGISTER_ISSET"
	case OpTestRegisterNotSet:
		return "TEST_REGISTER_NOT_SET"
	case OpTestRegisterIsTrue:
		return "TEST_REGISTER_IS_TRUE"
	case OpTestRegisterIsFalse:
		return "TEST_REGISTER_IS_FALSE"
	case OpList0:
		return "LIST0"
	case OpList1:
		return "LIST1"
	case OpList2:
		return "LIST2"
	case OpListN:
		return "LISTN"
	case OpMap0:
		return "MAP0"
	case OpMap1:
		return "MAP1"
	case OpMap2:
		return "MAP2"
	case OpMap3:
		return "MAP3"
	case OpMap4:
		return "MAP4"
	case OpMapN:
		return "MAPN"
	case OpResolveTemplate:
		return "RESOLVE_TEMPLATE"
	case OpFn0:
		return "FN0"
	case OpFn1:
		return "FN1"
	case OpFn2:
		return "FN2"
	case OpFn3:
		return "FN3"
	case OpFn:
		return "FN"
	case OpSubstring:
		return "SUBSTRING"
	case OpIsValidHostLabel:
		return "IS_VALID_HOST_LABEL"
	case OpParseURL:
		return "PARSE_URL"
	case OpUriEncode:
		return "URI_ENCODE"
	case OpSplit:
		return "SPLIT"
	case OpGetProperty:
		return "GET_PROPERTY"
	case OpGetIndex:
		return "GET_INDEX"
	case OpGetPropertyReg:
		return "GET_PROPERTY_REG"
	case OpGetIndexReg:
		return "GET_INDEX_REG"
	case OpReturnError:
		return "RETURN_ERROR"
	case OpReturnValue:
		return "RETURN_VALUE"
	case OpJnnOrPop:
		return "JNN_OR_POP"
	case OpReturnEndpoint:
		return "RETURN_ENDPOINT"
	default:
		return "UNKNOWN_INSTRUCTION"
	}
}
