package calclib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string, source CellLocation) ASTNode {
	t.Helper()
	node, err := ParseFormula(text, source, NewFunctionRegistry(), NewNamedRangeTable())
	require.NoError(t, err)
	return node
}

func TestParserPrecedence(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	node := mustParse(t, "1+2*3", source)
	ctx := evalContextFor(source, NewFunctionRegistry(), NewNamedRangeTable())
	require.Equal(t, NumberVariant(7), node.Evaluate(ctx))
}

func TestParserExponentBindsTighterThanMultiply(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	node := mustParse(t, "2^3*2", source)
	ctx := evalContextFor(source, NewFunctionRegistry(), NewNamedRangeTable())
	require.Equal(t, NumberVariant(16), node.Evaluate(ctx))
}

func TestParserUnaryAndPercent(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	ctx := evalContextFor(source, NewFunctionRegistry(), NewNamedRangeTable())

	node := mustParse(t, "-5^2", source)
	require.Equal(t, NumberVariant(-25), node.Evaluate(ctx)) // unary's operand absorbs the following ^

	node = mustParse(t, "50%", source)
	require.Equal(t, NumberVariant(0.5), node.Evaluate(ctx))
}

func TestParserRelativeAddressRawRoundTrip(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 3, Row: 3}
	node := mustParse(t, "B2+1", source)
	require.Equal(t, "B2+1", node.ToString())
	require.Equal(t, "R(-1)C(-1)+1", node.ToRawString(source))
}

func TestParserRange(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	node := mustParse(t, "SUM(A1:A3)", source)
	funcNode, ok := node.(*FunctionNode)
	require.True(t, ok)
	require.Equal(t, "SUM", funcNode.Method)
	_, ok = funcNode.Args[0].(*RangeNode)
	require.True(t, ok)
}

func TestParserComparisonAndConcat(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	ctx := evalContextFor(source, NewFunctionRegistry(), NewNamedRangeTable())

	node := mustParse(t, `"a"&"b"="ab"`, source)
	require.Equal(t, BoolVariant(true), node.Evaluate(ctx))
}

func TestParserUnknownFunctionRejected(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	_, err := ParseFormula("NOPE(1)", source, NewFunctionRegistry(), NewNamedRangeTable())
	require.Error(t, err)
}

func TestParserWrongArityRejected(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	_, err := ParseFormula("IF(1)", source, NewFunctionRegistry(), NewNamedRangeTable())
	require.Error(t, err)
}

// evalContextFor builds a throwaway single-cell workbook so parser tests
// can Evaluate() a freshly parsed AST without going through Sheet/Workbook
// plumbing.
func evalContextFor(source CellLocation, funcs *FunctionRegistry, names *NamedRangeTable) *CalculationContext {
	wb := NewWorkbook(FactoryDefaults{})
	sheet, _ := wb.AddSheet(source.Sheet)
	cell := sheet.Cell(source)
	return &CalculationContext{
		workbook:       wb,
		cellLoc:        source,
		cell:           cell,
		pass:           &evaluationPass{clock: WallClock{}, updateList: make(map[CellLocation]bool)},
		functions:      funcs,
		namedRanges:    names,
		epsilonTunable: DefaultEpsilon,
	}
}
