package calclib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertColumnFixesUpFormulas(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "10")
	set(t, sheet, "B1", "=A1*2")

	sheet.InsertColumn(1) // pushes A and B right by one

	cAfterInsert, ok := sheet.peekCell(CellLocation{Sheet: "Sheet1", Column: 3, Row: 1})
	require.True(t, ok)
	require.Equal(t, "=B1*2", cAfterInsert.ToString())
	require.Equal(t, NumberVariant(20), cAfterInsert.Value)
}

func TestDeleteColumnOfReferencedCellMarksReferenceAsError(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "B1", "5")
	set(t, sheet, "A1", "=B1+1")

	sheet.DeleteColumn(2) // deletes the column B1 lives in

	a1, ok := sheet.peekCell(CellLocation{Sheet: "Sheet1", Column: 1, Row: 1})
	require.True(t, ok)
	require.Equal(t, "#REF!+1", a1.ToString())
	require.True(t, a1.Value.IsError())
	require.Equal(t, ErrInvalidReference, a1.Value.Err)
}

func TestDeleteRowShiftsCellsUp(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "1")
	set(t, sheet, "A2", "2")
	set(t, sheet, "A3", "3")

	sheet.DeleteRow(2)

	a2, ok := sheet.peekCell(CellLocation{Sheet: "Sheet1", Column: 1, Row: 2})
	require.True(t, ok)
	require.Equal(t, NumberVariant(3), a2.Value)
}

func TestSortCellsStableOnTies(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "2")
	set(t, sheet, "B1", "first")
	set(t, sheet, "A2", "1")
	set(t, sheet, "B2", "second")
	set(t, sheet, "A3", "2")
	set(t, sheet, "B3", "third")

	sheet.SortCells(
		CellLocation{Sheet: "Sheet1", Column: 1, Row: 1},
		CellLocation{Sheet: "Sheet1", Column: 2, Row: 3},
		1, DefaultEpsilon,
	)

	require.Equal(t, NumberVariant(1), value(t, sheet, "A1"))
	require.Equal(t, TextVariant("second"), value(t, sheet, "B1"))
	require.Equal(t, NumberVariant(2), value(t, sheet, "A2"))
	require.Equal(t, TextVariant("first"), value(t, sheet, "B2")) // tie kept original relative order
	require.Equal(t, NumberVariant(2), value(t, sheet, "A3"))
	require.Equal(t, TextVariant("third"), value(t, sheet, "B3"))
}

func TestRenderRowOverflowsIntoEmptyNeighbour(t *testing.T) {
	wb, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "a long piece of text")
	row := sheet.RenderRow(1, 1, 2, wb.formats)
	require.Len(t, row, 2)
	require.Contains(t, row[0], "a long piece")
}

func TestCrossSheetFormula(t *testing.T) {
	wb, sheet1 := newTestWorkbook(t)
	sheet2, err := wb.AddSheet("Sheet2")
	require.NoError(t, err)

	set(t, sheet1, "A1", "5")
	set(t, sheet2, "A1", "=Sheet1!A1*10")
	sheet2.Calculate()

	require.Equal(t, NumberVariant(50), value(t, sheet2, "A1"))
}

func TestInsertColumnOnOtherSheetFixesCrossSheetReference(t *testing.T) {
	wb, sheet1 := newTestWorkbook(t)
	sheet2, err := wb.AddSheet("Sheet2")
	require.NoError(t, err)

	set(t, sheet1, "B1", "7")
	set(t, sheet2, "A1", "=Sheet1!B1")
	sheet2.Calculate()
	require.Equal(t, NumberVariant(7), value(t, sheet2, "A1"))

	sheet1.InsertColumn(1) // Sheet1!B1 moves to Sheet1!C1

	a1, ok := sheet2.peekCell(CellLocation{Sheet: "Sheet2", Column: 1, Row: 1})
	require.True(t, ok)
	require.Equal(t, "=Sheet1!C1", a1.ToString())
	require.Equal(t, NumberVariant(7), a1.Value)
}
