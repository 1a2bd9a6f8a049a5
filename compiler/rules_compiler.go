// BytecodeCompiler (C7): lowers a rules.Ruleset into an immutable
// bytecode.Bytecode, choosing opcodes by expression shape per the pattern
// table in spec.md §4.7. The match order below follows that table exactly
// — first match wins. This file supersedes the teacher's expression-tree
// stack compiler (compiler.go/register_compiler.go) for the rules-engine
// domain; see DESIGN.md for what was adapted versus dropped.
package compiler

import (
	"rulesengine/bytecode"
	"rulesengine/compiler/regalloc"
	"rulesengine/rules"
	"rulesengine/rules/extension"
	"rulesengine/rules/fn"
	"rulesengine/rules/value"
	"rulesengine/rulesengineerrors"
)

// RulesCompiler lowers one ruleset into one Bytecode. Construct a fresh one
// per call to Compile.
type RulesCompiler struct {
	w        *bytecode.Writer
	regs     *regalloc.Allocator
	registry *fn.Registry
}

// Compile implements the compiler's external API: it lowers rs into a
// Bytecode, resolving library-function calls against registry. extensions
// is accepted for API symmetry with the runtime (spec.md's Compiler API
// signature), but endpoint extensions are a runtime-only collaborator
// (they run during RETURN_ENDPOINT assembly, not at compile time), so
// Compile does not use it.
func Compile(rs rules.Ruleset, registry *fn.Registry, extensions []extension.Extension) (bc *bytecode.Bytecode, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*rulesengineerrors.CompileError); ok {
				bc, err = nil, ce
				return
			}
			panic(r)
		}
	}()

	c := &RulesCompiler{
		w:        bytecode.NewWriter(),
		regs:     regalloc.New(),
		registry: registry,
	}

	for _, p := range rs.Parameters {
		if _, aerr := c.regs.Allocate(p.Name, p.Required, p.Default, p.Builtin, false); aerr != nil {
			return nil, aerr
		}
	}

	for _, cond := range rs.Conditions {
		if err := c.compileCondition(cond); err != nil {
			return nil, err
		}
	}

	for _, r := range rs.Results {
		if err := c.compileResult(r); err != nil {
			return nil, err
		}
	}

	return c.w.Build(c.regs.Definitions()), nil
}

func (c *RulesCompiler) compileCondition(cond rules.Condition) error {
	c.w.MarkConditionStart()

	var regIdx int
	if cond.ResultName != "" {
		idx, err := c.regs.Allocate(cond.ResultName, false, nil, "", true)
		if err != nil {
			return err
		}
		regIdx = idx
	}

	if err := c.compileExpr(cond.Expr); err != nil {
		return err
	}

	if cond.ResultName != "" {
		c.w.WriteByte(byte(bytecode.OpSetRegister))
		c.w.WriteByte(byte(regIdx))
	}

	c.w.WriteByte(byte(bytecode.OpReturnValue))
	return nil
}

func (c *RulesCompiler) compileResult(r rules.Result) error {
	c.w.MarkResultStart()

	switch t := r.(type) {
	case rules.EndpointResult:
		hasHeaders := len(t.HeaderNames) > 0
		hasProperties := len(t.PropertyNames) > 0

		if hasHeaders {
			for _, name := range t.HeaderNames {
				exprs := t.Headers[name]
				for _, e := range exprs {
					if err := c.compileExpr(e); err != nil {
						return err
					}
				}
				if err := c.emitListOp(len(exprs)); err != nil {
					return err
				}
				idx, err := c.w.GetConstantIndex(value.Str(name))
				if err != nil {
					return err
				}
				c.w.EmitLoadConst(idx)
			}
			if err := c.emitMapOp(len(t.HeaderNames)); err != nil {
				return err
			}
		}

		if hasProperties {
			for _, name := range t.PropertyNames {
				if err := c.compileExpr(t.Properties[name]); err != nil {
					return err
				}
				idx, err := c.w.GetConstantIndex(value.Str(name))
				if err != nil {
					return err
				}
				c.w.EmitLoadConst(idx)
			}
			if err := c.emitMapOp(len(t.PropertyNames)); err != nil {
				return err
			}
		}

		if err := c.compileExpr(t.URL); err != nil {
			return err
		}

		flags := byte(0)
		if hasHeaders {
			flags |= 1
		}
		if hasProperties {
			flags |= 2
		}
		c.w.WriteByte(byte(bytecode.OpReturnEndpoint))
		c.w.WriteByte(flags)
		return nil

	case rules.ErrorResult:
		if err := c.compileExpr(t.Message); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpReturnError))
		return nil

	case rules.NoMatchResult:
		idx, err := c.w.GetConstantIndex(value.Null())
		if err != nil {
			return err
		}
		c.w.EmitLoadConst(idx)
		c.w.WriteByte(byte(bytecode.OpReturnValue))
		return nil

	default:
		return rulesengineerrors.NewCompileError(rulesengineerrors.UnsupportedLiteral, "unknown result kind")
	}
}

// emitListOp picks LIST0/1/2/LISTN for n pushed elements (all already on
// the stack in source order).
func (c *RulesCompiler) emitListOp(n int) error {
	switch n {
	case 0:
		c.w.WriteByte(byte(bytecode.OpList0))
	case 1:
		c.w.WriteByte(byte(bytecode.OpList1))
	case 2:
		c.w.WriteByte(byte(bytecode.OpList2))
	default:
		if n > 255 {
			return rulesengineerrors.NewCompileError(rulesengineerrors.UnsupportedLiteral, "list literal exceeds 255 elements")
		}
		c.w.WriteByte(byte(bytecode.OpListN))
		c.w.WriteByte(byte(n))
	}
	return nil
}

// emitMapOp picks MAP0..MAP4/MAPN for n (key,value) pairs already pushed as
// value-then-key, per pair, in source order.
func (c *RulesCompiler) emitMapOp(n int) error {
	switch n {
	case 0:
		c.w.WriteByte(byte(bytecode.OpMap0))
	case 1:
		c.w.WriteByte(byte(bytecode.OpMap1))
	case 2:
		c.w.WriteByte(byte(bytecode.OpMap2))
	case 3:
		c.w.WriteByte(byte(bytecode.OpMap3))
	case 4:
		c.w.WriteByte(byte(bytecode.OpMap4))
	default:
		if n > 255 {
			return rulesengineerrors.NewCompileError(rulesengineerrors.UnsupportedLiteral, "record literal exceeds 255 entries")
		}
		c.w.WriteByte(byte(bytecode.OpMapN))
		c.w.WriteByte(byte(n))
	}
	return nil
}

// compileExpr emits code that leaves exactly one value on the stack.
func (c *RulesCompiler) compileExpr(e rules.Expr) error {
	switch v := e.(type) {

	case rules.Ref:
		idx, ok := c.regs.GetRegister(v.Name)
		if !ok {
			return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownReference, v.Name)
		}
		c.w.WriteByte(byte(bytecode.OpLoadRegister))
		c.w.WriteByte(byte(idx))
		return nil

	case rules.IsSet:
		if ref, ok := v.Inner.(rules.Ref); ok {
			idx, ok := c.regs.GetRegister(ref.Name)
			if !ok {
				return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownReference, ref.Name)
			}
			c.w.WriteByte(byte(bytecode.OpTestRegisterIsSet))
			c.w.WriteByte(byte(idx))
			return nil
		}
		if err := c.compileExpr(v.Inner); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpIsSet))
		return nil

	case rules.Not:
		if isSet, ok := v.Inner.(rules.IsSet); ok {
			if ref, ok2 := isSet.Inner.(rules.Ref); ok2 {
				idx, ok3 := c.regs.GetRegister(ref.Name)
				if !ok3 {
					return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownReference, ref.Name)
				}
				c.w.WriteByte(byte(bytecode.OpTestRegisterNotSet))
				c.w.WriteByte(byte(idx))
				return nil
			}
		}
		if err := c.compileExpr(v.Inner); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpNot))
		return nil

	case rules.BooleanEquals:
		if regIdx, litVal, ok := litRefPair(c.regs, v.A, v.B); ok {
			if litVal {
				c.w.WriteByte(byte(bytecode.OpTestRegisterIsTrue))
			} else {
				c.w.WriteByte(byte(bytecode.OpTestRegisterIsFalse))
			}
			c.w.WriteByte(byte(regIdx))
			return nil
		}
		if lit, other, ok := litAnyPair(v.A, v.B); ok {
			if err := c.compileExpr(other); err != nil {
				return err
			}
			c.w.WriteByte(byte(bytecode.OpIsTrue))
			if !lit {
				c.w.WriteByte(byte(bytecode.OpNot))
			}
			return nil
		}
		if err := c.compileExpr(v.A); err != nil {
			return err
		}
		if err := c.compileExpr(v.B); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpBooleanEquals))
		return nil

	case rules.StringEquals:
		if err := c.compileExpr(v.A); err != nil {
			return err
		}
		if err := c.compileExpr(v.B); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpStringEquals))
		return nil

	case rules.Substring:
		if err := c.compileExpr(v.Str); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpSubstring))
		c.w.WriteByte(v.Start)
		c.w.WriteByte(v.End)
		if v.Reverse {
			c.w.WriteByte(1)
		} else {
			c.w.WriteByte(0)
		}
		return nil

	case rules.IsValidHostLabel:
		if err := c.compileExpr(v.Str); err != nil {
			return err
		}
		if err := c.compileExpr(v.AllowDots); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpIsValidHostLabel))
		return nil

	case rules.ParseURL:
		if err := c.compileExpr(v.Str); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpParseURL))
		return nil

	case rules.UriEncode:
		if err := c.compileExpr(v.Str); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpUriEncode))
		return nil

	case rules.Split:
		if err := c.compileExpr(v.Str); err != nil {
			return err
		}
		if err := c.compileExpr(v.Delimiter); err != nil {
			return err
		}
		if err := c.compileExpr(v.Limit); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpSplit))
		return nil

	case rules.Coalesce:
		if err := c.compileExpr(v.A); err != nil {
			return err
		}
		c.w.WriteByte(byte(bytecode.OpJnnOrPop))
		patchAt := c.w.Len()
		c.w.WriteShort(0)
		if err := c.compileExpr(v.B); err != nil {
			return err
		}
		distance := c.w.Len() - (patchAt + 2)
		if err := bytecode.CheckJumpOffset(distance); err != nil {
			return err
		}
		c.w.PatchShort(patchAt, uint16(distance))
		return nil

	case rules.Call:
		f, ok := c.registry.Lookup(v.Name)
		if !ok {
			return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownFunction, v.Name)
		}
		if f.Arity != len(v.Args) {
			return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownFunction, v.Name)
		}
		for _, a := range v.Args {
			if err := c.compileExpr(a); err != nil {
				return err
			}
		}
		idx := c.w.InternFunction(f)
		switch f.Arity {
		case 0:
			c.w.WriteByte(byte(bytecode.OpFn0))
		case 1:
			c.w.WriteByte(byte(bytecode.OpFn1))
		case 2:
			c.w.WriteByte(byte(bytecode.OpFn2))
		case 3:
			c.w.WriteByte(byte(bytecode.OpFn3))
		default:
			c.w.WriteByte(byte(bytecode.OpFn))
		}
		c.w.WriteShort(uint16(idx))
		return nil

	case rules.GetAttr:
		if ref, ok := v.Target.(rules.Ref); ok && len(v.Path) == 1 {
			idx, ok2 := c.regs.GetRegister(ref.Name)
			if !ok2 {
				return rulesengineerrors.NewCompileError(rulesengineerrors.UnknownReference, ref.Name)
			}
			part := v.Path[0]
			if part.HasIndex {
				c.w.WriteByte(byte(bytecode.OpGetIndexReg))
				c.w.WriteByte(byte(idx))
				c.w.WriteByte(part.Index)
			} else {
				nameIdx, err := c.w.GetConstantIndex(value.Str(part.Key))
				if err != nil {
					return err
				}
				c.w.WriteByte(byte(bytecode.OpGetPropertyReg))
				c.w.WriteByte(byte(idx))
				c.w.WriteShort(uint16(nameIdx))
			}
			return nil
		}
		if err := c.compileExpr(v.Target); err != nil {
			return err
		}
		for _, part := range v.Path {
			if part.HasIndex {
				c.w.WriteByte(byte(bytecode.OpGetIndex))
				c.w.WriteByte(part.Index)
			} else {
				nameIdx, err := c.w.GetConstantIndex(value.Str(part.Key))
				if err != nil {
					return err
				}
				c.w.WriteByte(byte(bytecode.OpGetProperty))
				c.w.WriteShort(uint16(nameIdx))
			}
		}
		return nil

	case rules.StrTemplate:
		dynCount := 0
		for _, seg := range v.Segments {
			if seg.Dynamic != nil {
				dynCount++
			}
		}
		if len(v.Segments) == 1 && v.Segments[0].Dynamic == nil {
			idx, err := c.w.GetConstantIndex(value.Str(v.Segments[0].Literal))
			if err != nil {
				return err
			}
			c.w.EmitLoadConst(idx)
			return nil
		}
		if dynCount == 1 && len(v.Segments) == 1 {
			return c.compileExpr(v.Segments[0].Dynamic)
		}
		var vsegs []value.TemplateSegment
		var canonical []byte
		for _, seg := range v.Segments {
			if seg.Dynamic == nil {
				vsegs = append(vsegs, value.TemplateSegment{Literal: seg.Literal})
				canonical = append(canonical, seg.Literal...)
				continue
			}
			if err := c.compileExpr(seg.Dynamic); err != nil {
				return err
			}
			vsegs = append(vsegs, value.TemplateSegment{IsSlot: true})
			canonical = append(canonical, "{}"...)
		}
		tmpl := value.NewTemplate(vsegs, string(canonical))
		tmplIdx, err := c.w.GetConstantIndex(value.FromTemplate(tmpl))
		if err != nil {
			return err
		}
		if tmplIdx > 65535 {
			return rulesengineerrors.NewCompileError(rulesengineerrors.ConstantPoolOverflow, "")
		}
		c.w.WriteByte(byte(bytecode.OpResolveTemplate))
		c.w.WriteByte(byte(dynCount))
		c.w.WriteShort(uint16(tmplIdx))
		return nil

	case rules.Tuple:
		for _, el := range v.Elements {
			if err := c.compileExpr(el); err != nil {
				return err
			}
		}
		return c.emitListOp(len(v.Elements))

	case rules.Record:
		for _, entry := range v.Entries {
			if err := c.compileExpr(entry.Value); err != nil {
				return err
			}
			idx, err := c.w.GetConstantIndex(value.Str(entry.Key))
			if err != nil {
				return err
			}
			c.w.EmitLoadConst(idx)
		}
		return c.emitMapOp(len(v.Entries))

	case rules.Lit:
		idx, err := c.w.GetConstantIndex(v.Value)
		if err != nil {
			return err
		}
		c.w.EmitLoadConst(idx)
		return nil

	default:
		return rulesengineerrors.NewCompileError(rulesengineerrors.UnsupportedLiteral, "unrecognized expression shape")
	}
}

// litRefPair recognizes booleanEquals(lit, refR) or booleanEquals(refR,
// lit) and returns the register index and the literal's boolean value.
func litRefPair(regs *regalloc.Allocator, a, b rules.Expr) (regIdx int, litVal bool, ok bool) {
	if lv, ok1 := asLitBool(a); ok1 {
		if ref, ok2 := b.(rules.Ref); ok2 {
			if idx, ok3 := regs.GetRegister(ref.Name); ok3 {
				return idx, lv, true
			}
		}
	}
	if lv, ok1 := asLitBool(b); ok1 {
		if ref, ok2 := a.(rules.Ref); ok2 {
			if idx, ok3 := regs.GetRegister(ref.Name); ok3 {
				return idx, lv, true
			}
		}
	}
	return 0, false, false
}

// litAnyPair recognizes booleanEquals(lit, e) (or (e, lit)) for any e — the
// fallback row once the register-fast-path has been ruled out.
func litAnyPair(a, b rules.Expr) (litVal bool, other rules.Expr, ok bool) {
	if lv, ok1 := asLitBool(a); ok1 {
		return lv, b, true
	}
	if lv, ok1 := asLitBool(b); ok1 {
		return lv, a, true
	}
	return false, nil, false
}

func asLitBool(e rules.Expr) (bool, bool) {
	lit, ok := e.(rules.Lit)
	if !ok || lit.Value.Kind() != value.KindBool {
		return false, false
	}
	return lit.Value.AsBool(), true
}
