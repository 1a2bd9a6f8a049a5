// Package vm implements the stack-based BytecodeEvaluator (C8): the
// runtime counterpart to the compiler package. One Evaluator is built per
// compiled Bytecode and reused across many evaluations; Reset repopulates
// the register file from a fresh context/parameter pair on every request,
// after which the caller drives Test/ResolveResult itself.
package vm

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"rulesengine/bytecode"
	"rulesengine/rules/extension"
	"rulesengine/rules/uricache"
	"rulesengine/rules/value"
	"rulesengine/rulesengineerrors"
)

var (
	hostLabelPattern       = regexp2.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`, regexp2.None)
	hostLabelDottedPattern = regexp2.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`, regexp2.None)
)

// Option configures an Evaluator at construction time.
type Option func(*BytecodeEvaluator)

// WithURICacheCapacity overrides the default bounded LRU size used by
// PARSE_URL and RETURN_ENDPOINT's url validation.
func WithURICacheCapacity(capacity int) Option {
	return func(e *BytecodeEvaluator) { e.uriCache = uricache.New(capacity) }
}

// WithExtensions registers endpoint-assembly extensions, invoked in
// registration order during RETURN_ENDPOINT.
func WithExtensions(exts []extension.Extension) Option {
	return func(e *BytecodeEvaluator) { e.extensions = exts }
}

// BytecodeEvaluator executes one compiled Bytecode program. It implements
// spec.md §6's Runtime API (reset/test/resolveResult); the decision walk
// that decides which condition to test and which result to resolve from it
// is an external collaborator, out of scope for this package (spec.md §5).
// It is not safe for concurrent use; callers evaluating the same program
// from multiple goroutines should build one Evaluator per goroutine
// (construction is cheap — the expensive part, compilation, happens once
// and the Bytecode is shared read-only).
type BytecodeEvaluator struct {
	bc *bytecode.Bytecode

	registers []value.Value
	stack     vmStack
	sb        strings.Builder

	uriCache   *uricache.Cache
	extensions []extension.Extension
}

// New builds an Evaluator for bc. A fresh, default-capacity URI cache is
// created unless WithURICacheCapacity overrides it. Reset must be called
// before the first Test/ResolveResult.
func New(bc *bytecode.Bytecode, opts ...Option) *BytecodeEvaluator {
	e := &BytecodeEvaluator{
		bc:        bc,
		registers: make([]value.Value, len(bc.RegisterDefinitions)),
		stack:     newVMStack(),
		uriCache:  uricache.New(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reset implements the RegisterFiller contract (spec.md §4.9: named
// parameter, else default, else builtin provider, else fail if required,
// else null — temp registers always start null) against a fresh request.
// context supplies builtin-backed values (e.g. "SDK::Endpoint") by name;
// it is consulted per call, so the same compiled Bytecode can serve
// requests whose builtins legitimately vary (spec.md §4.9 Scenario C).
func (e *BytecodeEvaluator) Reset(context map[string]value.Value, parameters map[string]value.Value) error {
	for i, def := range e.bc.RegisterDefinitions {
		if def.Temp {
			e.registers[i] = value.Null()
			continue
		}
		if v, ok := parameters[def.Name]; ok {
			e.registers[i] = v
			continue
		}
		if def.DefaultValue != nil {
			e.registers[i] = *def.DefaultValue
			continue
		}
		if def.Builtin != "" {
			if v, ok := context[def.Builtin]; ok {
				e.registers[i] = v
				continue
			}
		}
		if def.Required {
			return rulesengineerrors.NewEvalError(rulesengineerrors.MissingRequiredParameter, 0, def.Name)
		}
		e.registers[i] = value.Null()
	}
	return nil
}

// Test runs the conditionIndex'th condition to completion and reports
// whether its result is truthy — null does not distinguish from false to
// the caller (spec.md §7). The register file may be mutated by any
// SET_REGISTER the condition's bytecode executes; that mutation is
// observable to later Test/ResolveResult calls until the next Reset.
func (e *BytecodeEvaluator) Test(conditionIndex int) (bool, error) {
	if conditionIndex < 0 || conditionIndex >= len(e.bc.ConditionOffsets) {
		return false, rulesengineerrors.NewEvalError(rulesengineerrors.MalformedBytecode, 0, "condition index out of range")
	}
	off := int(e.bc.ConditionOffsets[conditionIndex])
	res, err := e.run(off)
	if err != nil {
		return false, err
	}
	if res.kind != outcomeValue {
		return false, rulesengineerrors.NewEvalError(rulesengineerrors.MalformedBytecode, off, "condition did not terminate with RETURN_VALUE")
	}
	return res.value.Truthy(), nil
}

// ResolveResult runs the resultIndex'th result to completion. A negative
// resultIndex is the no-match sentinel: it returns (nil, nil) without
// running any bytecode (spec.md §8 property 10). A ruleset's ErrorResult
// and any VM fault both surface as a *RulesEvaluationError — spec.md §6
// describes both as "errors... raised as RulesEvaluationError", with no
// separate channel for the two.
func (e *BytecodeEvaluator) ResolveResult(resultIndex int) (*extension.Endpoint, error) {
	if resultIndex < 0 {
		return nil, nil
	}
	if resultIndex >= len(e.bc.ResultOffsets) {
		return nil, rulesengineerrors.NewEvalError(rulesengineerrors.MalformedBytecode, 0, "result index out of range")
	}
	off := int(e.bc.ResultOffsets[resultIndex])
	res, err := e.run(off)
	if err != nil {
		return nil, err
	}
	switch res.kind {
	case outcomeEndpoint:
		return res.endpoint, nil
	case outcomeError:
		return nil, rulesengineerrors.NewEvalError(rulesengineerrors.ModeledRuleError, res.pc, res.errMsg)
	default:
		// NoMatchResult: a literal null terminated by RETURN_VALUE.
		return nil, nil
	}
}

type outcomeKind int

const (
	outcomeValue outcomeKind = iota
	outcomeError
	outcomeEndpoint
)

type runResult struct {
	kind     outcomeKind
	value    value.Value
	errMsg   string
	pc       int // offset of the RETURN_ERROR opcode, for outcomeError
	endpoint *extension.Endpoint
}

// run executes starting at pc until a RETURN_* opcode, returning its
// outcome. Each call starts with a freshly-reset stack, so one run never
// observes another's leftovers.
func (e *BytecodeEvaluator) run(pc int) (runResult, error) {
	e.stack.reset()
	ins := e.bc.Instructions
	s := &e.stack

	for {
		if pc >= len(ins) {
			return runResult{}, rulesengineerrors.NewEvalError(rulesengineerrors.MalformedBytecode, pc, "fell off the end of the instruction stream")
		}
		op := bytecode.OpCode(ins[pc])
		pc++

		switch op {
		case bytecode.OpLoadConst:
			idx := int(ins[pc])
			pc++
			s.push(e.bc.ConstantPool[idx])

		case bytecode.OpLoadConstW:
			idx := readU16(ins, pc)
			pc += 2
			s.push(e.bc.ConstantPool[idx])

		case bytecode.OpLoadRegister:
			r := int(ins[pc])
			pc++
			s.push(e.registers[r])

		case bytecode.OpSetRegister:
			r := int(ins[pc])
			pc++
			e.registers[r] = s.peek()

		case bytecode.OpNot:
			v, err := e.popBool(pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Bool(!v))

		case bytecode.OpIsSet:
			v := s.pop()
			s.push(value.Bool(!v.IsNull()))

		case bytecode.OpIsTrue:
			v, err := e.popBool(pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Bool(v))

		case bytecode.OpEquals:
			b := s.pop()
			a := s.pop()
			s.push(value.Bool(a.Equal(b)))

		case bytecode.OpStringEquals:
			b, err := popString(s, pc)
			if err != nil {
				return runResult{}, err
			}
			a, err := popString(s, pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Bool(a == b))

		case bytecode.OpBooleanEquals:
			b, err := e.popBool(pc)
			if err != nil {
				return runResult{}, err
			}
			a, err := e.popBool(pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Bool(a == b))

		case bytecode.OpTestRegisterIsSet:
			r := int(ins[pc])
			pc++
			s.push(value.Bool(!e.registers[r].IsNull()))

		case bytecode.OpTestRegisterNotSet:
			r := int(ins[pc])
			pc++
			s.push(value.Bool(e.registers[r].IsNull()))

		case bytecode.OpTestRegisterIsTrue:
			r := int(ins[pc])
			pc++
			v := e.registers[r]
			s.push(value.Bool(v.Kind() == value.KindBool && v.AsBool()))

		case bytecode.OpTestRegisterIsFalse:
			r := int(ins[pc])
			pc++
			v := e.registers[r]
			s.push(value.Bool(v.Kind() == value.KindBool && !v.AsBool()))

		case bytecode.OpList0:
			s.push(value.List(nil))

		case bytecode.OpList1:
			a := s.pop()
			s.push(value.List([]value.Value{a}))

		case bytecode.OpList2:
			b := s.pop()
			a := s.pop()
			s.push(value.List([]value.Value{a, b}))

		case bytecode.OpListN:
			n := int(ins[pc])
			pc++
			s.push(value.List(s.popN(n)))

		case bytecode.OpMap0:
			s.push(value.Map(map[string]value.Value{}))

		case bytecode.OpMap1, bytecode.OpMap2, bytecode.OpMap3, bytecode.OpMap4:
			n := mapOpArity(op)
			m, err := e.popPairs(n, pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Map(m))

		case bytecode.OpMapN:
			n := int(ins[pc])
			pc++
			m, err := e.popPairs(n, pc)
			if err != nil {
				return runResult{}, err
			}
			s.push(value.Map(m))

		case bytecode.OpResolveTemplate:
			argCount := int(ins[pc])
			pc++
			tmplIdx := readU16(ins, pc)
			pc += 2
			args := s.popN(argCount)
			tmpl := e.bc.ConstantPool[tmplIdx].AsTemplate()
			s.push(value.Str(tmpl.Resolve(&e.sb, args)))

		case bytecode.OpFn0, bytecode.OpFn1, bytecode.OpFn2, bytecode.OpFn3, bytecode.OpFn:
			idx := readU16(ins, pc)
			pc += 2
			f := e.bc.FunctionTable[idx]
			args := s.popN(f.Arity)
			result, err := f.Call(args)
			if err != nil {
				return runResult{}, rulesengineerrors.NewEvalError(rulesengineerrors.ModeledRuleError, pc, err.Error())
			}
			s.push(result)

		case bytecode.OpSubstring:
			start := ins[pc]
			end := ins[pc+1]
			reverse := ins[pc+2] != 0
			pc += 3
			str, isNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			if isNull {
				s.push(value.Null())
				break
			}
			s.push(substring(str, start, end, reverse))

		case bytecode.OpIsValidHostLabel:
			allowDots, err := e.popBool(pc)
			if err != nil {
				return runResult{}, err
			}
			str, isNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			if isNull {
				s.push(value.Null())
				break
			}
			s.push(value.Bool(isValidHostLabel(str, allowDots)))

		case bytecode.OpParseURL:
			str, isNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			if isNull {
				s.push(value.Null())
				break
			}
			uri, ok := e.uriCache.Get(str)
			if !ok {
				s.push(value.Null())
			} else {
				s.push(value.FromUri(uri))
			}

		case bytecode.OpUriEncode:
			str, isNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			if isNull {
				s.push(value.Null())
				break
			}
			s.push(value.Str(uriEncode(str)))

		case bytecode.OpSplit:
			limit := s.pop()
			delim, isDelimNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			str, isStrNull, err := popStringOrNull(s, pc)
			if err != nil {
				return runResult{}, err
			}
			if isStrNull || isDelimNull {
				s.push(value.Null())
				break
			}
			s.push(splitValue(str, delim, limit))

		case bytecode.OpGetProperty:
			nameIdx := readU16(ins, pc)
			pc += 2
			v := s.pop()
			name := e.bc.ConstantPool[nameIdx].AsString()
			s.push(getProperty(v, name))

		case bytecode.OpGetIndex:
			i := ins[pc]
			pc++
			v := s.pop()
			s.push(getIndex(v, i))

		case bytecode.OpGetPropertyReg:
			r := int(ins[pc])
			nameIdx := readU16(ins, pc+1)
			pc += 3
			name := e.bc.ConstantPool[nameIdx].AsString()
			s.push(getProperty(e.registers[r], name))

		case bytecode.OpGetIndexReg:
			r := int(ins[pc])
			i := ins[pc+1]
			pc += 2
			s.push(getIndex(e.registers[r], i))

		case bytecode.OpReturnError:
			msg := s.pop()
			return runResult{kind: outcomeError, errMsg: msg.String(), pc: pc - 1}, nil

		case bytecode.OpReturnValue:
			v := s.pop()
			return runResult{kind: outcomeValue, value: v}, nil

		case bytecode.OpJnnOrPop:
			offset := readU16(ins, pc)
			pc += 2
			if !s.peek().IsNull() {
				pc += int(offset)
			} else {
				s.pop()
			}

		case bytecode.OpReturnEndpoint:
			flags := ins[pc]
			pc++
			ep, err := e.assembleEndpoint(flags, pc)
			if err != nil {
				return runResult{}, err
			}
			return runResult{kind: outcomeEndpoint, endpoint: ep}, nil

		default:
			return runResult{}, rulesengineerrors.NewEvalError(rulesengineerrors.UnknownInstruction, pc-1, fmt.Sprintf("opcode %d", byte(op)))
		}
	}
}

func (e *BytecodeEvaluator) assembleEndpoint(flags byte, pc int) (*extension.Endpoint, error) {
	urlVal, err := popString(&e.stack, pc)
	if err != nil {
		return nil, err
	}
	if _, ok := e.uriCache.Get(urlVal); !ok {
		return nil, rulesengineerrors.NewEvalError(rulesengineerrors.UriParseFailure, pc, urlVal)
	}

	var properties map[string]value.Value
	if flags&2 != 0 {
		propsVal := e.stack.pop()
		if propsVal.Kind() != value.KindMap {
			return nil, rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "endpoint properties")
		}
		properties = propsVal.AsMap()
	}

	var headers map[string][]string
	if flags&1 != 0 {
		headersVal := e.stack.pop()
		if headersVal.Kind() != value.KindMap {
			return nil, rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "endpoint headers")
		}
		headers = make(map[string][]string, len(headersVal.AsMap()))
		for k, lv := range headersVal.AsMap() {
			if lv.Kind() != value.KindList {
				return nil, rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "endpoint header value")
			}
			strs := make([]string, 0, len(lv.AsList()))
			for _, item := range lv.AsList() {
				strs = append(strs, item.String())
			}
			headers[k] = strs
		}
	}

	ep := &extension.Endpoint{URI: urlVal, Headers: headers, Properties: properties}

	ctx := make(map[string]value.Value, len(e.bc.RegisterDefinitions))
	for i, def := range e.bc.RegisterDefinitions {
		if !def.Temp {
			ctx[def.Name] = e.registers[i]
		}
	}
	for _, ext := range e.extensions {
		ext.ExtractEndpointProperties(ep, ctx, properties, headers)
	}

	return ep, nil
}

func (e *BytecodeEvaluator) popBool(pc int) (bool, error) {
	v := e.stack.pop()
	if v.Kind() != value.KindBool {
		return false, rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "expected bool")
	}
	return v.AsBool(), nil
}

func popString(s *vmStack, pc int) (string, error) {
	v := s.pop()
	if v.Kind() != value.KindString {
		return "", rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "expected string")
	}
	return v.AsString(), nil
}

// popStringOrNull is popString's null-propagating sibling, used by the
// built-in functions (substring, isValidHostLabel, parseURL, uriEncode,
// split) whose ruleset-level contract is to yield null rather than fault
// when their string operand is unset — the common case of chaining one of
// these through coalesce() without an upstream isSet guard.
func popStringOrNull(s *vmStack, pc int) (str string, isNull bool, err error) {
	v := s.pop()
	if v.IsNull() {
		return "", true, nil
	}
	if v.Kind() != value.KindString {
		return "", false, rulesengineerrors.NewEvalError(rulesengineerrors.UnexpectedValueType, pc, "expected string")
	}
	return v.AsString(), false, nil
}

// popPairs pops n (value,key) pairs — the layout every MAPn/MAPN opcode
// shares, since the compiler always pushes a literal/record entry's value
// followed by its key, regardless of n (SPEC_FULL.md's MAP3 normalization
// decision applies here: there is no irregular bottom-indexed variant).
func (e *BytecodeEvaluator) popPairs(n int, pc int) (map[string]value.Value, error) {
	m := make(map[string]value.Value, n)
	for i := 0; i < n; i++ {
		key, err := popString(&e.stack, pc)
		if err != nil {
			return nil, err
		}
		val := e.stack.pop()
		if val.IsNull() {
			continue
		}
		m[key] = val
	}
	return m, nil
}

func mapOpArity(op bytecode.OpCode) int {
	switch op {
	case bytecode.OpMap1:
		return 1
	case bytecode.OpMap2:
		return 2
	case bytecode.OpMap3:
		return 3
	case bytecode.OpMap4:
		return 4
	default:
		return 0
	}
}

func readU16(ins []byte, off int) int {
	return int(ins[off]) | int(ins[off+1])<<8
}

// substring slices by Unicode code point, not byte or UTF-16 unit.
func substring(s string, start, end byte, reverse bool) value.Value {
	runes := []rune(s)
	n := len(runes)
	lo, hi := int(start), int(end)
	if reverse {
		lo, hi = n-int(end), n-int(start)
	}
	if lo < 0 || hi > n || lo > hi {
		return value.Null()
	}
	return value.Str(string(runes[lo:hi]))
}

func isValidHostLabel(s string, allowDots bool) bool {
	if s == "" {
		return false
	}
	pattern := hostLabelPattern
	if allowDots {
		pattern = hostLabelDottedPattern
	}
	ok, err := pattern.MatchString(s)
	return err == nil && ok
}

// uriEncode percent-encodes everything outside RFC 3986's unreserved set.
func uriEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}

func splitValue(str, delim string, limit value.Value) value.Value {
	n := -1
	if limit.Kind() == value.KindInt64 && limit.AsInt() > 0 {
		n = int(limit.AsInt())
	}
	parts := strings.SplitN(str, delim, n)
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.Str(p)
	}
	return value.List(out)
}

func getProperty(v value.Value, name string) value.Value {
	switch v.Kind() {
	case value.KindMap:
		if r, ok := v.AsMap()[name]; ok {
			return r
		}
		return value.Null()
	case value.KindUri:
		if r, ok := v.AsUri().GetProperty(name); ok {
			return r
		}
		return value.Null()
	default:
		return value.Null()
	}
}

func getIndex(v value.Value, i byte) value.Value {
	if v.Kind() != value.KindList {
		return value.Null()
	}
	list := v.AsList()
	if int(i) >= len(list) {
		return value.Null()
	}
	return list[i]
}
