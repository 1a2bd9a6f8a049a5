// Package regalloc is the register allocator (C3): it assigns stable u8
// indices to names in first-seen order — parameter names first, in the
// ruleset's declared order, then temporary binding names introduced by
// conditions' result clauses.
package regalloc

import (
	"rulesengine/bytecode"
	"rulesengine/rules/value"
	"rulesengine/rulesengineerrors"
)

const maxRegisters = 256

// Allocator assigns and looks up register indices.
type Allocator struct {
	defs    []bytecode.RegisterDef
	byName  map[string]int
}

// New creates an empty Allocator.
func New() *Allocator {
	return &Allocator{byName: make(map[string]int)}
}

// Allocate assigns the next free index to name, recording its parameter
// metadata. Allocating the same name twice is a no-op that returns the
// existing index (parameters are allocated once, up front; temp names are
// allocated lazily the first time a condition result binds them).
func (a *Allocator) Allocate(name string, required bool, def *value.Value, builtin string, temp bool) (int, error) {
	if idx, ok := a.byName[name]; ok {
		return idx, nil
	}
	if len(a.defs) >= maxRegisters {
		return 0, rulesengineerrors.NewCompileError(rulesengineerrors.TooManyRegisters, name)
	}
	idx := len(a.defs)
	a.defs = append(a.defs, bytecode.RegisterDef{
		Name:         name,
		Required:     required,
		DefaultValue: def,
		Builtin:      builtin,
		Temp:         temp,
	})
	a.byName[name] = idx
	return idx, nil
}

// GetRegister resolves name to its index. Per spec.md §4.3, an unresolved
// reference at compile time is a programmer/input error: callers that hit
// this during expression lowering should surface
// CompileError::UnknownReference rather than treat it as a runtime
// condition.
func (a *Allocator) GetRegister(name string) (int, bool) {
	idx, ok := a.byName[name]
	return idx, ok
}

// Definitions returns the accumulated register definitions in allocation
// order, suitable for Bytecode.RegisterDefinitions.
func (a *Allocator) Definitions() []bytecode.RegisterDef {
	return a.defs
}
