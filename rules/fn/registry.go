// Package fn is the host-provided function table referenced by the FN0..FN3
// and FN opcodes. The compiler never knows what a function computes; it
// only needs a stable index and the declared arity so it can pick the
// fixed-arity opcode variant (or fall back to the variadic FN) and validate
// call sites at compile time.
package fn

import "rulesengine/rules/value"

// Call is a synchronous, allocation-light host function. Per §5 of the
// engine's concurrency model, functions registered here must not block on
// I/O — they are limited to pure computation.
type Call func(args []value.Value) (value.Value, error)

// Fn is one entry of the function table: a name (for diagnostics and
// disassembly), a fixed arity, and the callable itself.
type Fn struct {
	Name string
	Arity int
	Call Call
}

// Registry maps function names to their Fn descriptor. It is built by the
// caller (the "glue code" spec.md places out of scope) and handed to
// Compile; the compiler interns only the entries it actually references
// into the Bytecode's function table.
type Registry struct {
	byName map[string]Fn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Fn)}
}

// Register adds a named function with a fixed arity (0..=N). Re-registering
// a name overwrites the previous entry.
func (r *Registry) Register(name string, arity int, call Call) {
	r.byName[name] = Fn{Name: name, Arity: arity, Call: call}
}

// Lookup returns the Fn descriptor for name, if any.
func (r *Registry) Lookup(name string) (Fn, bool) {
	f, ok := r.byName[name]
	return f, ok
}
