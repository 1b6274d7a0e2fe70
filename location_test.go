package calclib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnLettersRoundTrip(t *testing.T) {
	cases := map[int]string{1: "A", 26: "Z", 27: "AA", 28: "AB", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for col, letters := range cases {
		require.Equal(t, letters, ColumnLetters(col))
		idx, err := ColumnIndex(letters)
		require.NoError(t, err)
		require.Equal(t, col, idx)
	}
}

func TestParseAddress(t *testing.T) {
	loc, err := ParseAddress("B3")
	require.NoError(t, err)
	require.Equal(t, CellLocation{Column: 2, Row: 3}, loc)

	loc, err = ParseAddress("Sheet2!C4")
	require.NoError(t, err)
	require.Equal(t, CellLocation{Sheet: "Sheet2", Column: 3, Row: 4}, loc)

	_, err = ParseAddress("123")
	require.Error(t, err)

	_, err = ParseAddress("ZZZZZZZZZZ1")
	require.Error(t, err)
}

func TestRelativeAddressRoundTrip(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 3, Row: 5}
	target := CellLocation{Sheet: "Sheet1", Column: 4, Row: 3}

	rel := RelativeFrom(target, source)
	require.Equal(t, RelativeAddress{RowOffset: -2, ColOffset: 1}, rel)

	resolved := rel.Resolve(source)
	require.Equal(t, target, resolved)

	text := rel.String()
	parsed, err := ParseRelativeAddress(text)
	require.NoError(t, err)
	require.Equal(t, rel, parsed)
}

func TestRelativeAddressCrossSheet(t *testing.T) {
	source := CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}
	target := CellLocation{Sheet: "Sheet2", Column: 2, Row: 2}

	rel := RelativeFrom(target, source)
	require.Equal(t, "Sheet2", rel.Sheet)

	resolved := rel.Resolve(source)
	require.Equal(t, target, resolved)
}
