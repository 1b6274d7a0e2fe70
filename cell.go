package calclib

import (
	"strconv"
	"strings"
	"time"
)

// CellKind is the closed set of content kinds a Cell can hold (§3, §4.6).
type CellKind int

const (
	CellEmpty CellKind = iota
	CellNumber
	CellText
	CellFormula
)

// CellAlignment controls row-rendering horizontal placement (§3, §4.7).
type CellAlignment int

const (
	AlignGeneral CellAlignment = iota
	AlignLeft
	AlignRight
	AlignCenter
)

// Cell is one spreadsheet cell: its address, its raw and parsed content,
// its computed value, and its display format. Grounded on the teacher's
// Cell/CellValue/CellType (cell.go), generalized from a single Primitive
// payload to the closed Variant type and from the teacher's reflection-
// driven formula re-evaluation to the AST/CalculationContext pipeline.
type Cell struct {
	Location CellLocation

	Kind        CellKind
	RawContent  string   // exactly what the user typed
	FormulaTree ASTNode  // non-nil only when Kind == CellFormula

	Value Variant
	Err   *CalcError

	Format         CellFormat
	FormatExplicit bool // true once the user (not NOW()/TODAY()) has set a format
	Alignment      CellAlignment
}

// NewCell creates an empty cell at loc with the default alignment/format.
func NewCell(loc CellLocation) *Cell {
	return &Cell{Location: loc, Kind: CellEmpty, Value: Empty, Alignment: AlignGeneral}
}

// IsEmpty reports whether the cell has no content at all.
func (c *Cell) IsEmpty() bool { return c.Kind == CellEmpty }

// SetContent assigns raw user input to the cell, applying §4.6's
// decision tree: a leading "=" is a formula; failing that, a recognized
// date or time literal; failing that, a parseable number; otherwise
// plain text. A formula is parsed against the cell's own Location
// (relative addresses and unqualified sheet names resolve against it).
//
// SetContent does not evaluate a new formula immediately — the caller
// (normally Sheet.SetCellContent) is responsible for adding the cell to
// the workbook's invalid set and running a recalculation pass.
func (c *Cell) SetContent(raw string, funcs *FunctionRegistry, names *NamedRangeTable) error {
	c.RawContent = raw
	c.FormulaTree = nil
	c.Err = nil

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		c.Kind = CellEmpty
		c.Value = Empty
		return nil
	}

	if strings.HasPrefix(trimmed, "=") {
		tree, err := ParseFormula(trimmed[1:], c.Location, funcs, names)
		if err != nil {
			c.Kind = CellFormula
			c.Value = Empty
			if ce, ok := err.(*CalcError); ok {
				c.Err = ce
			} else {
				c.Err = NewCalcError(ErrInvalidFormula, err.Error())
			}
			return err
		}
		c.Kind = CellFormula
		c.FormulaTree = tree
		c.Value = Empty // resolved by the next recalculation pass
		return nil
	}

	if serial, ok := parseDateLiteral(trimmed); ok {
		c.Kind = CellNumber
		c.Value = NumberVariant(serial)
		if !c.FormatExplicit {
			c.Format = CellFormat{Kind: FormatDateDMY}
		}
		return nil
	}

	if serial, ok := parseTimeLiteral(trimmed); ok {
		c.Kind = CellNumber
		c.Value = NumberVariant(serial)
		if !c.FormatExplicit {
			c.Format = CellFormat{Kind: FormatTimeHM}
		}
		return nil
	}

	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		c.Kind = CellNumber
		c.Value = NumberVariant(n)
		return nil
	}

	c.Kind = CellText
	c.Value = TextVariant(trimmed)
	return nil
}

// SetFormat assigns an explicit display format, overriding whatever
// NOW()/TODAY() side-effect formatting a formula might otherwise apply.
func (c *Cell) SetFormat(f CellFormat) {
	c.Format = f
	c.FormatExplicit = true
}

// Dependents returns every fully-qualified location this cell's formula
// reads, or nil for a non-formula cell.
func (c *Cell) Dependents() []CellLocation {
	if c.Kind != CellFormula || c.FormulaTree == nil {
		return nil
	}
	return c.FormulaTree.Dependents(c.Location, nil)
}

// Display renders the cell's computed value through the given format
// registry, per §4.6/§4.7.
func (c *Cell) Display(registry *FormatRegistry) string {
	if c.Err != nil {
		return c.Err.Code.sentinel()
	}
	return registry.Render(c.Value, c.Format)
}

// ToString renders the cell's content the way a user typed it: a
// formula renders as "=" plus the AST's display form (absolute
// addresses), anything else renders as RawContent.
func (c *Cell) ToString() string {
	if c.Kind == CellFormula && c.FormulaTree != nil {
		return "=" + c.FormulaTree.ToString()
	}
	return c.RawContent
}

// ToRawString renders the cell's content in persisted form: a formula
// renders with relative (R(n)C(m)) addresses so it survives a
// structural copy to a different cell unchanged in meaning.
func (c *Cell) ToRawString() string {
	if c.Kind == CellFormula && c.FormulaTree != nil {
		return "=" + c.FormulaTree.ToRawString(c.Location)
	}
	return c.RawContent
}

// monthAbbrev maps the three-letter month names §4.6's "d-MMM",
// "MMM-yyyy" and "d-MMM-yyyy" patterns spell out, case-insensitively.
var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// parseDateLiteral recognizes §4.6's plain-text date patterns: the
// dash-separated month-name forms ("d-MMM", "MMM-yyyy", "d-MMM-yyyy")
// plus the numeric "dd/mm/yyyy" and "dd/mm" (current year) forms.
func parseDateLiteral(s string) (float64, bool) {
	if v, ok := parseNumericDate(s); ok {
		return v, true
	}
	return parseMonthNameDate(s)
}

// parseMonthNameDate handles the §4.6 dash-separated, month-name forms.
func parseMonthNameDate(s string) (float64, bool) {
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 2:
		if day, err := strconv.Atoi(parts[0]); err == nil {
			if month, ok := monthAbbrev[strings.ToLower(parts[1])]; ok {
				t := time.Date(time.Now().Year(), month, day, 0, 0, 0, 0, time.UTC)
				return DateToSerial(t), true
			}
		}
		if month, ok := monthAbbrev[strings.ToLower(parts[0])]; ok {
			if year, err := strconv.Atoi(parts[1]); err == nil {
				if year < 100 {
					year += 2000
				}
				t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
				return DateToSerial(t), true
			}
		}
	case 3:
		day, err1 := strconv.Atoi(parts[0])
		month, ok := monthAbbrev[strings.ToLower(parts[1])]
		year, err2 := strconv.Atoi(parts[2])
		if err1 == nil && ok && err2 == nil {
			if year < 100 {
				year += 2000
			}
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			return DateToSerial(t), true
		}
	}
	return 0, false
}

// parseNumericDate recognizes "dd/mm/yyyy" and "dd/mm" (current year)
// plain-text dates, a numeric form §4.6 also accepts.
func parseNumericDate(s string) (float64, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	for _, p := range parts {
		if p == "" {
			return 0, false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return 0, false
		}
	}
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, false
	}
	year := time.Now().Year()
	if len(parts) == 3 {
		y, _ := strconv.Atoi(parts[2])
		year = y
		if year < 100 {
			year += 2000
		}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return DateToSerial(t), true
}

// parseTimeLiteral recognizes "hh:mm" and "hh:mm:ss" plain-text times.
func parseTimeLiteral(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}
	h, m := nums[0], nums[1]
	sec := 0
	if len(nums) == 3 {
		sec = nums[2]
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, false
	}
	return float64(h*3600+m*60+sec) / 86400, true
}
