package let

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleStatement(t *testing.T) {
	stmt := Parse("LET (y) = FN (x) = x + 1 ;")
	require.Equal(t, []string{"y"}, stmt.Outputs)
	require.Equal(t, []string{"x"}, stmt.Inputs)
	require.Len(t, stmt.Results, 1)
	assert.Equal(t, NBinary, stmt.Results[0].Kind)
	assert.Equal(t, byte('+'), stmt.Results[0].Op)
}

func TestParseMultipleOutputsAndWhere(t *testing.T) {
	stmt := Parse("LET (a,b) = FN (x,y) = c*x, c*y WHERE c = 2;")
	assert.Equal(t, []string{"a", "b"}, stmt.Outputs)
	assert.Equal(t, []string{"x", "y"}, stmt.Inputs)
	require.Len(t, stmt.Results, 2)
	require.Len(t, stmt.Where, 1)
	assert.Equal(t, "c", stmt.Where[0].Name)
}

func TestParsePowRightAssociative(t *testing.T) {
	stmt := Parse("LET (y) = FN (x) = x^2^3;")
	root := stmt.Results[0]
	require.Equal(t, NBinary, root.Kind)
	require.Equal(t, byte('^'), root.Op)
	// x^(2^3): left child is the variable, right child is itself a ^ node.
	assert.Equal(t, NVariable, root.Args[0].Kind)
	require.Equal(t, NBinary, root.Args[1].Kind)
	assert.Equal(t, byte('^'), root.Args[1].Op)
}

func TestParseFunctionCall(t *testing.T) {
	stmt := Parse("LET (y) = FN (x) = sqrt(x);")
	root := stmt.Results[0]
	require.Equal(t, NFunction, root.Kind)
	assert.Equal(t, "sqrt", root.Name)
	require.Len(t, root.Args, 1)
}

func TestParseTwoArgFunctionCall(t *testing.T) {
	stmt := Parse("LET (y) = FN (x,z) = atan2(x,z);")
	root := stmt.Results[0]
	require.Equal(t, NFunction, root.Kind)
	require.Len(t, root.Args, 2)
}

func TestParseUnaryMinus(t *testing.T) {
	stmt := Parse("LET (y) = FN (x) = -x;")
	root := stmt.Results[0]
	require.Equal(t, NUnary, root.Kind)
	assert.Equal(t, byte('-'), root.Op)
}

func TestParseMissingSemicolonIsOptional(t *testing.T) {
	assert.NotPanics(t, func() { Parse("LET (y) = FN (x) = x") })
}

func TestParseWhereCycleRaises(t *testing.T) {
	assert.Panics(t, func() {
		Parse("LET (y) = FN (x) = a WHERE a = b, b = a;")
	})
}

func TestParseTrailingGarbageRaises(t *testing.T) {
	assert.Panics(t, func() { Parse("LET (y) = FN (x) = x ; garbage") })
}

func TestParseMissingParenRaises(t *testing.T) {
	assert.Panics(t, func() { Parse("LET y = FN (x) = x;") })
}

func TestWhereTopoOrderRespectsDependencies(t *testing.T) {
	stmt := Parse("LET (y) = FN (x) = a + b WHERE b = a + 1, a = x;")
	ordered := WhereTopoOrder(stmt.Where)
	require.Len(t, ordered, 2)
	assert.Equal(t, "a", ordered[0].Name)
	assert.Equal(t, "b", ordered[1].Name)
}
