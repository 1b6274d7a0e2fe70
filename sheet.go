package calclib

import "strings"

// Sheet is one worksheet within a Workbook: a sparse cell store plus a
// name. The dependency graph and invalid-cell set live on the owning
// Workbook since a formula may reference cells on another sheet.
// Grounded on the teacher's Spreadsheet/Worksheet type (sheet.go,
// worksheet.go), split so that what the teacher called "Spreadsheet"
// becomes Workbook (the multi-sheet container, §3) and each worksheet
// becomes a Sheet.
type Sheet struct {
	Name    string
	Book    *Workbook
	columns *ColumnList
}

// newSheet creates an empty sheet named name, owned by book.
func newSheet(name string, book *Workbook) *Sheet {
	return &Sheet{Name: name, Book: book, columns: NewColumnList()}
}

// peekCell returns the cell at loc without creating it.
func (s *Sheet) peekCell(loc CellLocation) (*Cell, bool) {
	c := s.columns.GetCell(loc, false)
	return c, c != nil
}

// Cell returns the cell at loc, creating an empty one if none exists.
func (s *Sheet) Cell(loc CellLocation) *Cell {
	return s.columns.GetCell(loc, true)
}

// SetCellContent parses and assigns raw to the cell at loc, rebuilds its
// outgoing dependency edges, runs the strict write-time cycle check
// (§4.5, §9), and marks loc plus every transitive dependent invalid.
// It does not recalculate; call Calculate afterwards.
func (s *Sheet) SetCellContent(loc CellLocation, raw string) error {
	loc = loc.Qualify(s.Name)
	cell := s.Cell(loc)

	if err := cell.SetContent(raw, s.Book.functions, s.Book.namedRanges); err != nil {
		s.Book.graph.SetPrecedents(loc, nil)
		s.Book.invalid[loc] = true
		s.Book.logger.Warn().Str("cell", loc.String()).Err(err).Msg("formula parse failed")
		return err
	}

	precedents := cell.Dependents()
	for _, p := range precedents {
		if s.Book.graph.ReachableFrom(p, loc) {
			cell.Kind = CellFormula
			cell.Err = NewCalcError(ErrCircularReference, "")
			cell.Value = ErrorVariant(ErrCircularReference)
			s.Book.graph.SetPrecedents(loc, nil)
			s.Book.invalid[loc] = true
			s.Book.logger.Warn().Str("cell", loc.String()).Msg("circular reference rejected at write time")
			return NewCalcError(ErrCircularReference, "")
		}
	}

	s.Book.graph.SetPrecedents(loc, precedents)
	s.markInvalid(loc)
	return nil
}

// markInvalid adds loc and every transitive dependent of loc to the
// workbook's invalid set (§4.8).
func (s *Sheet) markInvalid(loc CellLocation) {
	s.Book.invalid[loc] = true
	for _, d := range s.Book.graph.TransitiveDependents(loc) {
		s.Book.invalid[d] = true
	}
}

// Calculate runs a recalculation pass over the workbook's invalid set
// and returns the cells whose value or error state changed (§4.8).
// Calculate is a Sheet-level entry point for symmetry with the
// teacher's API, but recalculation is workbook-wide since formulas can
// cross sheets.
func (s *Sheet) Calculate() []CellLocation {
	return s.Book.recalculate()
}

// InsertColumn shifts every cell at or beyond column (on this sheet
// only) one column to the right, fixes up formulas' addresses across
// the workbook, and
// schedules a full recalculation (§4.3's structural-edit contract).
func (s *Sheet) InsertColumn(column int) {
	s.columns.shiftColumnsFrom(column, 1)
	s.Book.fixupAllFormulas(s.Name, column, 0, 1)
	s.Book.scheduleFullRecalculate()
}

// DeleteColumn removes column (on this sheet only — its cells are
// dropped), shifts everything beyond it left, fixes up formulas across
// the workbook, and schedules a full recalculation.
func (s *Sheet) DeleteColumn(column int) {
	s.columns.shiftColumnsFrom(column, -1)
	s.Book.fixupAllFormulas(s.Name, column, 0, -1)
	s.Book.scheduleFullRecalculate()
}

// InsertRow shifts every cell at or beyond row in every column one row
// down, fixes up formulas, and schedules a full recalculation.
func (s *Sheet) InsertRow(row int) {
	s.columns.ForEachColumn(func(c *Column) { c.shiftRowsFrom(row, 1) })
	s.Book.fixupAllFormulas(s.Name, 0, row, 1)
	s.Book.scheduleFullRecalculate()
}

// DeleteRow removes row in every column, shifts everything beyond it up,
// fixes up formulas, and schedules a full recalculation.
func (s *Sheet) DeleteRow(row int) {
	s.columns.ForEachColumn(func(c *Column) { c.shiftRowsFrom(row, -1) })
	s.Book.fixupAllFormulas(s.Name, 0, row, -1)
	s.Book.scheduleFullRecalculate()
}

// SortCells reorders the cell values in [start,end] by the values in
// sortColumn, ascending, leaving formulas' own addresses untouched (only
// the values/content at each row position move). A stable bubble sort
// is used deliberately rather than a divide-and-conquer algorithm, so
// rows that compare equal on sortColumn keep their relative order.
func (s *Sheet) SortCells(start, end CellLocation, sortColumn int, epsilon float64) {
	r1, r2 := start.Row, end.Row
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	c1, c2 := start.Column, end.Column
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	rows := make([]int, 0, r2-r1+1)
	for r := r1; r <= r2; r++ {
		rows = append(rows, r)
	}

	keyAt := func(row int) Variant {
		return s.Cell(CellLocation{Sheet: s.Name, Column: sortColumn, Row: row}).Value
	}
	swapRows := func(a, b int) {
		for col := c1; col <= c2; col++ {
			locA := CellLocation{Sheet: s.Name, Column: col, Row: rows[a]}
			locB := CellLocation{Sheet: s.Name, Column: col, Row: rows[b]}
			cellA := s.Cell(locA)
			cellB := s.Cell(locB)
			cellA.RawContent, cellB.RawContent = cellB.RawContent, cellA.RawContent
			cellA.Kind, cellB.Kind = cellB.Kind, cellA.Kind
			cellA.FormulaTree, cellB.FormulaTree = cellB.FormulaTree, cellA.FormulaTree
			cellA.Value, cellB.Value = cellB.Value, cellA.Value
			cellA.Err, cellB.Err = cellB.Err, cellA.Err
			cellA.Format, cellB.Format = cellB.Format, cellA.Format
			cellA.Alignment, cellB.Alignment = cellB.Alignment, cellA.Alignment
		}
	}

	for i := 0; i < len(rows); i++ {
		for j := 0; j < len(rows)-i-1; j++ {
			if Compare(keyAt(rows[j]), keyAt(rows[j+1]), epsilon) == CompareGreater {
				swapRows(j, j+1)
			}
		}
	}
	s.Book.scheduleFullRecalculate()
}

// RenderRow renders the display text for columns [firstCol,lastCol] of
// row, applying §4.7's overflow rule: a text cell whose rendered value
// is wider than its column spills into immediately-following empty
// cells, consuming their width budget instead of truncating.
func (s *Sheet) RenderRow(row, firstCol, lastCol int, registry *FormatRegistry) []string {
	out := make([]string, 0, lastCol-firstCol+1)
	col := firstCol
	for col <= lastCol {
		cell, ok := s.peekCell(CellLocation{Sheet: s.Name, Column: col, Row: row})
		width := s.columns.Width(col)
		if !ok || cell.IsEmpty() {
			out = append(out, strings.Repeat(" ", width))
			col++
			continue
		}
		text := cell.Display(registry)
		overflowCols := 1
		if cell.Kind == CellText && len(text) > width {
			budget := width
			next := col + 1
			for next <= lastCol && budget < len(text) {
				nextCell, nextOK := s.peekCell(CellLocation{Sheet: s.Name, Column: next, Row: row})
				if nextOK && !nextCell.IsEmpty() {
					break
				}
				budget += s.columns.Width(next)
				next++
				overflowCols++
			}
			if len(text) > budget {
				text = text[:budget]
			} else {
				text = text + strings.Repeat(" ", budget-len(text))
			}
		} else if len(text) < width {
			if cell.Alignment == AlignRight {
				text = strings.Repeat(" ", width-len(text)) + text
			} else {
				text = text + strings.Repeat(" ", width-len(text))
			}
		}
		out = append(out, text)
		for k := 1; k < overflowCols; k++ {
			out = append(out, "")
		}
		col += overflowCols
	}
	return out
}
