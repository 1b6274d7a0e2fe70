package calclib

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxColumns and MaxRows bound every CellLocation, per §3.
const (
	MaxColumns = 255
	MaxRows    = 4096
)

// CellLocation identifies a cell: an optional sheet name (absent means
// "current sheet" when the location lives inside a formula), a 1-based
// column, and a 1-based row.
type CellLocation struct {
	Sheet  string // "" means "current sheet" in formula context
	Column int    // 1..MaxColumns
	Row    int    // 1..MaxRows
}

// Equal compares all three fields. Two locations with different sheet
// names are never equal even if one is "" — callers must resolve ""
// to a concrete sheet name (via Qualify) before comparing locations
// that came from different formula contexts.
func (l CellLocation) Equal(other CellLocation) bool {
	return l.Sheet == other.Sheet && l.Column == other.Column && l.Row == other.Row
}

// Qualify returns l with Sheet filled in from defaultSheet when empty.
func (l CellLocation) Qualify(defaultSheet string) CellLocation {
	if l.Sheet == "" {
		l.Sheet = defaultSheet
	}
	return l
}

// InBounds reports whether Column and Row are within [1, MaxColumns]
// and [1, MaxRows] respectively.
func (l CellLocation) InBounds() bool {
	return l.Column >= 1 && l.Column <= MaxColumns && l.Row >= 1 && l.Row <= MaxRows
}

// String renders the absolute display form, e.g. "B3" or "Sheet2!C4".
func (l CellLocation) String() string {
	addr := ColumnLetters(l.Column) + strconv.Itoa(l.Row)
	if l.Sheet != "" {
		return l.Sheet + "!" + addr
	}
	return addr
}

// ColumnLetters converts a 1-based column index to its letter form
// ("A", "B", ..., "Z", "AA", ...).
func ColumnLetters(col int) string {
	if col <= 0 {
		return ""
	}
	var sb strings.Builder
	for col > 0 {
		col--
		sb.WriteByte(byte('A' + col%26))
		col /= 26
	}
	s := sb.String()
	// digits were accumulated least-significant first
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// ColumnIndex converts a column-letter string ("A".."ZZ"...) to its
// 1-based index. Returns an error for anything but a run of uppercase
// ASCII letters.
func ColumnIndex(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}
	col := 0
	for _, ch := range letters {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letters)
		}
		col = col*26 + int(ch-'A'+1)
	}
	return col, nil
}

// ParseAddress parses an absolute address, optionally sheet-qualified:
// "A1", "AB12", "Sheet2!B10". Returns ErrInvalidAddress on malformed
// input or out-of-range column/row.
func ParseAddress(s string) (CellLocation, error) {
	sheet := ""
	rest := s
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = s[:idx]
		rest = s[idx+1:]
	}
	i := 0
	for i < len(rest) && rest[i] >= 'A' && rest[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(rest) {
		return CellLocation{}, NewCalcError(ErrInvalidAddress, fmt.Sprintf("malformed address %q", s))
	}
	letters, digits := rest[:i], rest[i:]
	col, err := ColumnIndex(letters)
	if err != nil {
		return CellLocation{}, NewCalcError(ErrInvalidAddress, fmt.Sprintf("malformed address %q", s))
	}
	row, err := strconv.Atoi(digits)
	if err != nil {
		return CellLocation{}, NewCalcError(ErrInvalidAddress, fmt.Sprintf("malformed address %q", s))
	}
	loc := CellLocation{Sheet: sheet, Column: col, Row: row}
	if !loc.InBounds() {
		return CellLocation{}, NewCalcError(ErrInvalidAddress, fmt.Sprintf("address %q out of bounds", s))
	}
	return loc, nil
}

// RelativeAddress is the internal R(n)C(m) serialisation of a location,
// relative to a formula's source cell. It supports persistence in
// content-addressed form so formulas survive copy/paste (§4.2).
type RelativeAddress struct {
	Sheet     string // "" when same-sheet
	RowOffset int
	ColOffset int
}

// Resolve turns a RelativeAddress into an absolute CellLocation given
// the formula's source cell.
func (r RelativeAddress) Resolve(source CellLocation) CellLocation {
	sheet := r.Sheet
	if sheet == "" {
		sheet = source.Sheet
	}
	return CellLocation{Sheet: sheet, Column: source.Column + r.ColOffset, Row: source.Row + r.RowOffset}
}

// RelativeFrom computes the RelativeAddress of loc relative to source.
func RelativeFrom(loc, source CellLocation) RelativeAddress {
	sheet := ""
	if loc.Sheet != "" && loc.Sheet != source.Sheet {
		sheet = loc.Sheet
	}
	return RelativeAddress{Sheet: sheet, RowOffset: loc.Row - source.Row, ColOffset: loc.Column - source.Column}
}

// String renders "R(n)C(m)" form, e.g. "R(1)C(-2)".
func (r RelativeAddress) String() string {
	s := fmt.Sprintf("R(%d)C(%d)", r.RowOffset, r.ColOffset)
	if r.Sheet != "" {
		return r.Sheet + "!" + s
	}
	return s
}

// ParseRelativeAddress parses the internal "R(n)C(m)" / "Sheet!R(n)C(m)"
// syntax used by raw/persisted formulas.
func ParseRelativeAddress(s string) (RelativeAddress, error) {
	sheet := ""
	rest := s
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = s[:idx]
		rest = s[idx+1:]
	}
	if !strings.HasPrefix(rest, "R(") {
		return RelativeAddress{}, NewCalcError(ErrInvalidRelativeAddress, fmt.Sprintf("malformed relative address %q", s))
	}
	rParenClose := strings.Index(rest, ")")
	if rParenClose < 0 {
		return RelativeAddress{}, NewCalcError(ErrInvalidRelativeAddress, fmt.Sprintf("malformed relative address %q", s))
	}
	rowStr := rest[2:rParenClose]
	remainder := rest[rParenClose+1:]
	if !strings.HasPrefix(remainder, "C(") || !strings.HasSuffix(remainder, ")") {
		return RelativeAddress{}, NewCalcError(ErrInvalidRelativeAddress, fmt.Sprintf("malformed relative address %q", s))
	}
	colStr := remainder[2 : len(remainder)-1]
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return RelativeAddress{}, NewCalcError(ErrInvalidRelativeAddress, fmt.Sprintf("malformed relative address %q", s))
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return RelativeAddress{}, NewCalcError(ErrInvalidRelativeAddress, fmt.Sprintf("malformed relative address %q", s))
	}
	return RelativeAddress{Sheet: sheet, RowOffset: row, ColOffset: col}, nil
}
