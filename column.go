package calclib

import "sort"

// defaultColumnWidth is the width (in character cells) a column renders
// at until ColumnList.AutoFit or an explicit SetWidth override it.
const defaultColumnWidth = 10

// Column is one sparse column of cells, kept sorted by row so GetCell
// can binary-search for existing cells and insert new ones in place.
// Grounded on the teacher's column-major Worksheet storage, adapted
// into a per-column struct so width tracking (§4.7's column-width
// rendering rule) has somewhere to live alongside the cells.
type Column struct {
	Index int
	Width int
	Cells []*Cell // sorted by Cells[i].Location.Row
}

// ColumnList is a sheet's sparse cell store: a slice of Columns sorted
// by Index, each holding its own sorted-by-row cell slice.
type ColumnList struct {
	columns []*Column
}

// NewColumnList creates an empty column store.
func NewColumnList() *ColumnList {
	return &ColumnList{}
}

// column returns the Column at index, creating it (in sorted position)
// if createIfEmpty is true and it does not yet exist.
func (cl *ColumnList) column(index int, createIfEmpty bool) *Column {
	i := sort.Search(len(cl.columns), func(i int) bool { return cl.columns[i].Index >= index })
	if i < len(cl.columns) && cl.columns[i].Index == index {
		return cl.columns[i]
	}
	if !createIfEmpty {
		return nil
	}
	col := &Column{Index: index, Width: defaultColumnWidth}
	cl.columns = append(cl.columns, nil)
	copy(cl.columns[i+1:], cl.columns[i:])
	cl.columns[i] = col
	return col
}

// GetCell returns the cell at loc, creating an empty one in sorted
// position within its column when createIfEmpty is true and none
// exists yet.
func (cl *ColumnList) GetCell(loc CellLocation, createIfEmpty bool) *Cell {
	col := cl.column(loc.Column, createIfEmpty)
	if col == nil {
		return nil
	}
	i := sort.Search(len(col.Cells), func(i int) bool { return col.Cells[i].Location.Row >= loc.Row })
	if i < len(col.Cells) && col.Cells[i].Location.Row == loc.Row {
		return col.Cells[i]
	}
	if !createIfEmpty {
		return nil
	}
	cell := NewCell(loc)
	col.Cells = append(col.Cells, nil)
	copy(col.Cells[i+1:], col.Cells[i:])
	col.Cells[i] = cell
	return cell
}

// RemoveCell deletes the cell at loc, if present.
func (cl *ColumnList) RemoveCell(loc CellLocation) {
	col := cl.column(loc.Column, false)
	if col == nil {
		return
	}
	i := sort.Search(len(col.Cells), func(i int) bool { return col.Cells[i].Location.Row >= loc.Row })
	if i < len(col.Cells) && col.Cells[i].Location.Row == loc.Row {
		col.Cells = append(col.Cells[:i], col.Cells[i+1:]...)
	}
}

// Width returns the display width of a column, defaultColumnWidth if it
// has never been touched.
func (cl *ColumnList) Width(index int) int {
	col := cl.column(index, false)
	if col == nil {
		return defaultColumnWidth
	}
	return col.Width
}

// SetWidth sets an explicit column width, creating the column if needed.
func (cl *ColumnList) SetWidth(index, width int) {
	cl.column(index, true).Width = width
}

// AutoFit sets a column's width to the widest rendered cell value
// currently in it, never less than defaultColumnWidth (so an explicit
// wider width can shrink). The width has no upper cap. registry is used
// to render each cell's display form.
func (cl *ColumnList) AutoFit(index int, registry *FormatRegistry) {
	col := cl.column(index, false)
	if col == nil {
		return
	}
	width := defaultColumnWidth
	for _, cell := range col.Cells {
		if w := len(cell.Display(registry)); w > width {
			width = w
		}
	}
	col.Width = width
}

// AllCells returns every cell in the store, including cells created
// empty, in column-major, row-ascending order (the order used by
// full-recalculate and save).
func (cl *ColumnList) AllCells() []*Cell {
	var out []*Cell
	for _, col := range cl.columns {
		out = append(out, col.Cells...)
	}
	return out
}

// ForEachColumn visits every Column in ascending Index order.
func (cl *ColumnList) ForEachColumn(fn func(*Column)) {
	for _, col := range cl.columns {
		fn(col)
	}
}

// shiftColumnsFrom inserts (offset>0) or deletes (offset<0) a column at
// index, shifting every column at or beyond index by offset and
// dropping any column that lands outside [1, MaxColumns] or, for a
// delete, the column being removed.
func (cl *ColumnList) shiftColumnsFrom(index, offset int) {
	var kept []*Column
	for _, col := range cl.columns {
		switch {
		case col.Index < index:
			kept = append(kept, col)
		case offset < 0 && col.Index == index:
			// dropped: this column is being deleted
		default:
			col.Index += offset
			for _, cell := range col.Cells {
				cell.Location.Column = col.Index
			}
			if col.Index >= 1 && col.Index <= MaxColumns {
				kept = append(kept, col)
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	cl.columns = kept
}

// shiftRowsFrom applies the same insert/delete shift to every cell's row
// within a single column.
func (c *Column) shiftRowsFrom(index, offset int) {
	var kept []*Cell
	for _, cell := range c.Cells {
		switch {
		case cell.Location.Row < index:
			kept = append(kept, cell)
		case offset < 0 && cell.Location.Row == index:
			// dropped: this row is being deleted
		default:
			cell.Location.Row += offset
			if cell.Location.Row >= 1 && cell.Location.Row <= MaxRows {
				kept = append(kept, cell)
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Location.Row < kept[j].Location.Row })
	c.Cells = kept
}
