// Package rulesengineerrors holds the two error taxonomies the engine
// raises: CompileError from the compiler, and RulesEvaluationError from the
// VM. Both are concrete struct types so callers that want typed recovery
// can type-assert or use errors.As; everyone else just sees an error.
package rulesengineerrors

import "fmt"

// CompileErrorKind enumerates the compile-time failure classes.
type CompileErrorKind uint8

const (
	UnknownReference CompileErrorKind = iota
	UnknownFunction
	ConstantPoolOverflow
	TooManyRegisters
	JumpTooFar
	UnsupportedLiteral
	InvalidGetAttrPath
)

func (k CompileErrorKind) String() string {
	switch k {
	case UnknownReference:
		return "UnknownReference"
	case UnknownFunction:
		return "UnknownFunction"
	case ConstantPoolOverflow:
		return "ConstantPoolOverflow"
	case TooManyRegisters:
		return "TooManyRegisters"
	case JumpTooFar:
		return "JumpTooFar"
	case UnsupportedLiteral:
		return "UnsupportedLiteral"
	case InvalidGetAttrPath:
		return "InvalidGetAttrPath"
	default:
		return "UnknownCompileErrorKind"
	}
}

// CompileError is returned synchronously from Compile.
type CompileError struct {
	Kind   CompileErrorKind
	Detail string // name, function id, literal kind... depending on Kind
}

func (e *CompileError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func NewCompileError(kind CompileErrorKind, detail string) *CompileError {
	return &CompileError{Kind: kind, Detail: detail}
}

// EvalErrorKind enumerates the VM's runtime failure classes.
type EvalErrorKind uint8

const (
	MissingRequiredParameter EvalErrorKind = iota
	UnknownInstruction
	MalformedBytecode
	UnexpectedValueType
	UnexpectedNull
	ModeledRuleError
	UriParseFailure
)

func (k EvalErrorKind) String() string {
	switch k {
	case MissingRequiredParameter:
		return "MissingRequiredParameter"
	case UnknownInstruction:
		return "UnknownInstruction"
	case MalformedBytecode:
		return "MalformedBytecode"
	case UnexpectedValueType:
		return "UnexpectedValueType"
	case UnexpectedNull:
		return "UnexpectedNull"
	case ModeledRuleError:
		return "ModeledRuleError"
	case UriParseFailure:
		return "UriParseFailure"
	default:
		return "UnknownEvalErrorKind"
	}
}

// RulesEvaluationError is the single error variant callers observe from the
// VM. PC is the program counter at the point of failure (0 for errors with
// no meaningful pc, such as MissingRequiredParameter raised by Reset before
// any opcode ran).
type RulesEvaluationError struct {
	Kind    EvalErrorKind
	PC      int
	Message string // populated for ModeledRuleError (the ruleset's own text) and detail messages
}

func (e *RulesEvaluationError) Error() string {
	if e.Kind == ModeledRuleError {
		return e.Message
	}
	if e.Message != "" {
		return fmt.Sprintf("%s at pc=%d: %s", e.Kind, e.PC, e.Message)
	}
	return fmt.Sprintf("%s at pc=%d", e.Kind, e.PC)
}

func NewEvalError(kind EvalErrorKind, pc int, message string) *RulesEvaluationError {
	return &RulesEvaluationError{Kind: kind, PC: pc, Message: message}
}
