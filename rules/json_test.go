package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeExprGetAttrCompactPathMatchesStructuredPath(t *testing.T) {
	compact, err := DecodeExpr([]byte(`{"kind":"getAttr","target":{"kind":"ref","name":"Endpoint"},"attrPath":"authority.bar[2]"}`))
	require.NoError(t, err)

	structured, err := DecodeExpr([]byte(`{"kind":"getAttr","target":{"kind":"ref","name":"Endpoint"},"path":[{"key":"authority"},{"key":"bar"},{"hasIndex":true,"index":2}]}`))
	require.NoError(t, err)

	require.Equal(t, structured.(GetAttr).Path, compact.(GetAttr).Path)
}

func TestDecodeExprGetAttrCompactPathRejectsInvalidSyntax(t *testing.T) {
	_, err := DecodeExpr([]byte(`{"kind":"getAttr","target":{"kind":"ref","name":"Endpoint"},"attrPath":"foo[bad]"}`))
	require.Error(t, err)
}
