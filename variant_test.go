package calclib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariantArithmetic(t *testing.T) {
	require.Equal(t, NumberVariant(5), NumberVariant(2).Add(NumberVariant(3)))
	require.Equal(t, NumberVariant(-1), NumberVariant(2).Sub(NumberVariant(3)))
	require.Equal(t, NumberVariant(6), NumberVariant(2).Mul(NumberVariant(3)))
	require.Equal(t, NumberVariant(8), NumberVariant(2).Pow(NumberVariant(3)))
}

func TestVariantDivideByZero(t *testing.T) {
	result := NumberVariant(1).Div(NumberVariant(0))
	require.True(t, result.IsError())
	require.Equal(t, ErrDivideByZero, result.Err)
}

func TestVariantCoercion(t *testing.T) {
	result := TextVariant("4").Add(NumberVariant(1))
	require.Equal(t, NumberVariant(5), result)

	result = TextVariant("not a number").Add(NumberVariant(1))
	require.True(t, result.IsError())
	require.Equal(t, ErrArgumentKind, result.Err)
}

func TestVariantConcat(t *testing.T) {
	result := TextVariant("a").Concat(NumberVariant(1))
	require.Equal(t, TextVariant("a1"), result)
}

func TestVariantCompareTolerance(t *testing.T) {
	a := NumberVariant(1.005)
	b := NumberVariant(1.0051)
	require.Equal(t, CompareEqual, Compare(a, b, DefaultEpsilon))

	c := NumberVariant(2.0)
	require.Equal(t, CompareLess, Compare(a, c, DefaultEpsilon))
}

func TestVariantCompareAcrossTags(t *testing.T) {
	require.Equal(t, CompareLess, Compare(Empty, NumberVariant(0.1), DefaultEpsilon))
	require.Equal(t, CompareLess, Compare(NumberVariant(1), TextVariant("abc"), DefaultEpsilon))
}

func TestVariantPercentAndNeg(t *testing.T) {
	require.Equal(t, NumberVariant(0.5), NumberVariant(50).Percent())
	require.Equal(t, NumberVariant(-50), NumberVariant(50).Neg())
}

func TestVariantStringRendering(t *testing.T) {
	require.Equal(t, "TRUE", BoolVariant(true).String())
	require.Equal(t, "FALSE", BoolVariant(false).String())
	require.Equal(t, "#DIV/0!", ErrorVariant(ErrDivideByZero).String())
	require.Equal(t, "3.5", NumberVariant(3.5).String())
}
