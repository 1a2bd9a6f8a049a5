package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rulesengine/compiler"
	"rulesengine/rules"
	"rulesengine/rules/extension"
	"rulesengine/rules/fn"
	"rulesengine/rules/value"
	"rulesengine/vm"
)

// walk drives the condition/result primitives the way an external decision
// structure would (spec.md §5): test each condition in turn, first true wins
// and resolves the result at the same index; falling off the end resolves
// the no-match sentinel.
func walk(t *testing.T, e *vm.BytecodeEvaluator, nConditions int) (*extension.Endpoint, error) {
	t.Helper()
	for i := 0; i < nConditions; i++ {
		matched, err := e.Test(i)
		if err != nil {
			return nil, err
		}
		if matched {
			return e.ResolveResult(i)
		}
	}
	return e.ResolveResult(-1)
}

func TestCompileAndEvaluateEndpointMatch(t *testing.T) {
	rs := rules.Ruleset{
		Parameters: []rules.Parameter{{Name: "Region", Required: true}},
		Conditions: []rules.Condition{
			{Expr: rules.IsSet{Inner: rules.Ref{Name: "Region"}}},
		},
		Results: []rules.Result{
			rules.EndpointResult{
				URL: rules.StrTemplate{Segments: []rules.TemplateSegment{
					{Literal: "https://"},
					{Dynamic: rules.Ref{Name: "Region"}},
					{Literal: ".amazonaws.com"},
				}},
			},
		},
	}

	bc, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.NoError(t, err)

	e := vm.New(bc)
	require.NoError(t, e.Reset(nil, map[string]value.Value{"Region": value.Str("us-west-2")}))
	ep, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.NotNil(t, ep)
	require.Equal(t, "https://us-west-2.amazonaws.com", ep.URI)
}

func TestCompileAndEvaluateNoMatch(t *testing.T) {
	rs := rules.Ruleset{
		Parameters: []rules.Parameter{{Name: "Region", Required: false}},
		Conditions: []rules.Condition{
			{Expr: rules.IsSet{Inner: rules.Ref{Name: "Region"}}},
		},
		Results: []rules.Result{
			rules.NoMatchResult{},
		},
	}

	bc, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.NoError(t, err)

	e := vm.New(bc)
	require.NoError(t, e.Reset(nil, map[string]value.Value{}))
	ep, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.Nil(t, ep)
}

func TestCompileAndEvaluateModeledError(t *testing.T) {
	rs := rules.Ruleset{
		Parameters: []rules.Parameter{{Name: "Bucket", Required: false}},
		Conditions: []rules.Condition{
			{Expr: rules.Not{Inner: rules.IsSet{Inner: rules.Ref{Name: "Bucket"}}}},
		},
		Results: []rules.Result{
			rules.ErrorResult{Message: rules.Lit{Value: value.Str("Bucket is required")}},
		},
	}

	bc, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.NoError(t, err)

	e := vm.New(bc)
	require.NoError(t, e.Reset(nil, map[string]value.Value{}))
	ep, err := walk(t, e, len(rs.Conditions))
	require.Nil(t, ep)
	require.Error(t, err)
	require.Equal(t, "Bucket is required", err.Error())
}

func TestCompileAndEvaluateBooleanEqualsFastPath(t *testing.T) {
	rs := rules.Ruleset{
		Parameters: []rules.Parameter{{Name: "UseFIPS", Required: false, Default: defaultBool(false)}},
		Conditions: []rules.Condition{
			{Expr: rules.BooleanEquals{A: rules.Ref{Name: "UseFIPS"}, B: rules.Lit{Value: value.Bool(true)}}},
		},
		Results: []rules.Result{
			rules.EndpointResult{URL: rules.Lit{Value: value.Str("https://fips.amazonaws.com")}},
		},
	}

	bc, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.NoError(t, err)

	e := vm.New(bc)
	require.NoError(t, e.Reset(nil, map[string]value.Value{"UseFIPS": value.Bool(true)}))
	ep, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.NotNil(t, ep)
	require.Equal(t, "https://fips.amazonaws.com", ep.URI)

	require.NoError(t, e.Reset(nil, map[string]value.Value{"UseFIPS": value.Bool(false)}))
	ep2, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.Nil(t, ep2)
}

func TestCompileAndEvaluateGetAttrAndCoalesce(t *testing.T) {
	rs := rules.Ruleset{
		Parameters: []rules.Parameter{
			{Name: "Endpoint", Required: false},
			{Name: "Region", Required: true},
		},
		Conditions: []rules.Condition{
			{Expr: rules.Lit{Value: value.Bool(true)}},
		},
		Results: []rules.Result{
			rules.EndpointResult{
				URL: rules.Coalesce{
					A: rules.GetAttr{
						Target: rules.Ref{Name: "Endpoint"},
						Path:   []rules.PathPart{{Key: "url"}},
					},
					B: rules.StrTemplate{Segments: []rules.TemplateSegment{
						{Literal: "https://"},
						{Dynamic: rules.Ref{Name: "Region"}},
						{Literal: ".amazonaws.com"},
					}},
				},
			},
		},
	}

	bc, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.NoError(t, err)

	e := vm.New(bc)
	require.NoError(t, e.Reset(nil, map[string]value.Value{
		"Endpoint": value.Null(),
		"Region":   value.Str("eu-west-1"),
	}))
	ep, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.NotNil(t, ep)
	require.Equal(t, "https://eu-west-1.amazonaws.com", ep.URI)

	require.NoError(t, e.Reset(nil, map[string]value.Value{
		"Endpoint": value.Map(map[string]value.Value{"url": value.Str("https://custom.example.com:9000")}),
		"Region":   value.Str("eu-west-1"),
	}))
	ep2, err := walk(t, e, len(rs.Conditions))
	require.NoError(t, err)
	require.NotNil(t, ep2)
	require.Equal(t, "https://custom.example.com:9000", ep2.URI)
}

func TestCompileUnknownReferenceFails(t *testing.T) {
	rs := rules.Ruleset{
		Conditions: []rules.Condition{
			{Expr: rules.IsSet{Inner: rules.Ref{Name: "Nonexistent"}}},
		},
		Results: []rules.Result{rules.NoMatchResult{}},
	}

	_, err := compiler.Compile(rs, fn.NewRegistry(), nil)
	require.Error(t, err)
}

func defaultBool(b bool) *value.Value {
	v := value.Bool(b)
	return &v
}
