// Command rulesc compiles a JSON ruleset file and evaluates it against a
// JSON parameter map, printing the resulting endpoint, modeled error, or
// "no match" — the same smoke-test role the teacher's minlang binary
// plays for its own bytecode.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"rulesengine/compiler"
	"rulesengine/internal/disasm"
	"rulesengine/rules"
	"rulesengine/rules/extension"
	"rulesengine/rules/fn"
	"rulesengine/rules/value"
	"rulesengine/rulesengineerrors"
	"rulesengine/vm"
)

func main() {
	debug := flag.Bool("debug", false, "print disassembled bytecode before evaluating")
	paramsPath := flag.String("params", "", "path to a JSON object of evaluation parameters")
	contextPath := flag.String("context", "", "path to a JSON object of builtin context values (e.g. SDK::Endpoint)")
	cacheCap := flag.Int("uri-cache", 0, "URI parse cache capacity (0 = default)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: rulesc [flags] <ruleset.json>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	rulesetRaw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading ruleset: %v\n", err)
		os.Exit(1)
	}

	rs, err := rules.DecodeRuleset(rulesetRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decoding ruleset: %v\n", err)
		os.Exit(1)
	}

	bc, err := compiler.Compile(rs, defaultRegistry(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		fmt.Println(disasm.Disassemble(bc))
	}

	params, err := loadParams(*paramsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading params: %v\n", err)
		os.Exit(1)
	}
	context, err := loadParams(*contextPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading context: %v\n", err)
		os.Exit(1)
	}

	opts := []vm.Option{}
	if *cacheCap > 0 {
		opts = append(opts, vm.WithURICacheCapacity(*cacheCap))
	}
	evaluator := vm.New(bc, opts...)

	if err := evaluator.Reset(context, params); err != nil {
		fmt.Fprintf(os.Stderr, "evaluation fault: %v\n", err)
		os.Exit(1)
	}

	// Drive the decision walk ourselves (spec.md §5 leaves it external to
	// the VM): first condition that tests true resolves the result at the
	// same index; falling off the end resolves the no-match sentinel.
	endpoint, evalErr, err := resolve(evaluator, len(rs.Conditions))
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation fault: %v\n", err)
		os.Exit(1)
	}

	switch {
	case evalErr != nil:
		fmt.Printf("modeled error: %s\n", evalErr.Error())
	case endpoint != nil:
		fmt.Printf("endpoint: %s\n", endpoint.URI)
		for k, v := range endpoint.Headers {
			fmt.Printf("  header %s: %v\n", k, v)
		}
		for k, v := range endpoint.Properties {
			fmt.Printf("  property %s: %s\n", k, v.String())
		}
	default:
		fmt.Println("no match")
	}
}

// resolve walks conditions 0..nConditions-1 in order, resolving the first
// one that tests true. A *rulesengineerrors.RulesEvaluationError raised by
// RETURN_ERROR is returned as evalErr (a modeled outcome, not a CLI
// failure); any other error is a VM fault and is returned as err.
func resolve(e *vm.BytecodeEvaluator, nConditions int) (endpoint *extension.Endpoint, evalErr error, err error) {
	for i := 0; i < nConditions; i++ {
		matched, terr := e.Test(i)
		if terr != nil {
			return nil, nil, terr
		}
		if !matched {
			continue
		}
		ep, rerr := e.ResolveResult(i)
		if rerr != nil {
			var re *rulesengineerrors.RulesEvaluationError
			if errors.As(rerr, &re) && re.Kind == rulesengineerrors.ModeledRuleError {
				return nil, re, nil
			}
			return nil, nil, rerr
		}
		return ep, nil, nil
	}
	ep, rerr := e.ResolveResult(-1)
	return ep, nil, rerr
}

func loadParams(path string) (map[string]value.Value, error) {
	out := make(map[string]value.Value)
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	for k, v := range decoded {
		out[k] = fromJSONAny(v)
	}
	return out, nil
}

func fromJSONAny(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case float64:
		return value.Double(t)
	case string:
		return value.Str(t)
	case []any:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = fromJSONAny(e)
		}
		return value.List(elems)
	case map[string]any:
		m := make(map[string]value.Value, len(t))
		for k, e := range t {
			m[k] = fromJSONAny(e)
		}
		return value.Map(m)
	default:
		return value.Null()
	}
}

// defaultRegistry registers the small set of pure string functions a
// ruleset's Call expressions may invoke. Host embedders are expected to
// build their own registry; this one exists so the CLI has something to
// exercise without extra configuration.
func defaultRegistry() *fn.Registry {
	r := fn.NewRegistry()
	r.Register("isSet", 1, func(args []value.Value) (value.Value, error) {
		return value.Bool(!args[0].IsNull()), nil
	})
	r.Register("stringEquals", 2, func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].AsString() == args[1].AsString()), nil
	})
	return r
}
