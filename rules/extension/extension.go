// Package extension defines the capability endpoint assembly (C9) invokes
// to lift protocol-specific fields out of a ruleset's free-form properties
// and headers maps.
package extension

import "rulesengine/rules/value"

// Endpoint is the concrete record a successful RETURN_ENDPOINT produces:
// the resolved URI plus whatever headers and properties the ruleset
// attached, after extensions have had a chance to lift typed fields out of
// Properties.
type Endpoint struct {
	URI        string
	Headers    map[string][]string
	Properties map[string]value.Value

	// Fields lifted out of Properties by registered extensions, keyed by
	// the extension-defined field name (e.g. "authSchemes").
	Extra map[string]value.Value
}

// Set records a lifted field. Extensions call this instead of mutating
// Endpoint's map fields directly so that the endpoint-assembly step can
// present a single, order-independent merge surface.
func (e *Endpoint) Set(field string, v value.Value) {
	if e.Extra == nil {
		e.Extra = make(map[string]value.Value)
	}
	e.Extra[field] = v
}

// Extension lifts arbitrary ruleset properties/headers into typed endpoint
// fields. Extensions are invoked in registration order, which must be
// stable for a given compiled program (spec.md §9).
type Extension interface {
	ExtractEndpointProperties(ep *Endpoint, ctx map[string]value.Value, properties map[string]value.Value, headers map[string][]string)
}

// ExtensionFunc adapts a plain function to the Extension interface.
type ExtensionFunc func(ep *Endpoint, ctx map[string]value.Value, properties map[string]value.Value, headers map[string][]string)

func (f ExtensionFunc) ExtractEndpointProperties(ep *Endpoint, ctx map[string]value.Value, properties map[string]value.Value, headers map[string][]string) {
	f(ep, ctx, properties, headers)
}
