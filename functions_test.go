package calclib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func newTestWorkbook(t *testing.T) (*Workbook, *Sheet) {
	t.Helper()
	wb := NewWorkbook(FactoryDefaults{Clock: fixedClock{t: time.Date(2026, time.July, 30, 9, 0, 0, 0, time.UTC)}})
	sheet, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	return wb, sheet
}

func set(t *testing.T, s *Sheet, addr, raw string) {
	t.Helper()
	loc, err := ParseAddress(addr)
	require.NoError(t, err)
	require.NoError(t, s.SetCellContent(loc.Qualify(s.Name), raw))
}

func value(t *testing.T, s *Sheet, addr string) Variant {
	t.Helper()
	loc, err := ParseAddress(addr)
	require.NoError(t, err)
	cell, ok := s.peekCell(loc.Qualify(s.Name))
	require.True(t, ok)
	return cell.Value
}

func TestAggregateFunctions(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "1")
	set(t, sheet, "A2", "2")
	set(t, sheet, "A3", "3")
	set(t, sheet, "B1", "=SUM(A1:A3)")
	set(t, sheet, "B2", "=AVERAGE(A1:A3)")
	set(t, sheet, "B3", "=MAX(A1:A3)")
	set(t, sheet, "B4", "=MIN(A1:A3)")
	set(t, sheet, "B5", "=COUNT(A1:A3)")
	sheet.Calculate()

	require.Equal(t, NumberVariant(6), value(t, sheet, "B1"))
	require.Equal(t, NumberVariant(2), value(t, sheet, "B2"))
	require.Equal(t, NumberVariant(3), value(t, sheet, "B3"))
	require.Equal(t, NumberVariant(1), value(t, sheet, "B4"))
	require.Equal(t, NumberVariant(3), value(t, sheet, "B5"))
}

func TestIfAndBooleanFunctions(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "5")
	set(t, sheet, "B1", "=IF(A1>3,\"big\",\"small\")")
	set(t, sheet, "B2", "=AND(A1>3,A1<10)")
	set(t, sheet, "B3", "=OR(A1>100,A1<10)")
	set(t, sheet, "B4", "=NOT(A1>100)")
	sheet.Calculate()

	require.Equal(t, TextVariant("big"), value(t, sheet, "B1"))
	require.Equal(t, BoolVariant(true), value(t, sheet, "B2"))
	require.Equal(t, BoolVariant(true), value(t, sheet, "B3"))
	require.Equal(t, BoolVariant(true), value(t, sheet, "B4"))
}

func TestDependentCellsRecalculateOnEdit(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "10")
	set(t, sheet, "A2", "=A1*2")
	set(t, sheet, "A3", "=A2+1")
	sheet.Calculate()
	require.Equal(t, NumberVariant(21), value(t, sheet, "A3"))

	set(t, sheet, "A1", "20")
	sheet.Calculate()
	require.Equal(t, NumberVariant(41), value(t, sheet, "A3"))
}

func TestCircularReferenceRejectedAtWrite(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "=A2")
	err := sheet.SetCellContent(CellLocation{Sheet: "Sheet1", Column: 1, Row: 2}, "=A1")
	require.Error(t, err)

	loc := CellLocation{Sheet: "Sheet1", Column: 1, Row: 2}
	cell, ok := sheet.peekCell(loc)
	require.True(t, ok)
	require.NotNil(t, cell.Err)
	require.Equal(t, ErrCircularReference, cell.Err.Code)
}

func TestMutualCircularReferenceResolvesOnCalculate(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "=A2")
	_ = sheet.SetCellContent(CellLocation{Sheet: "Sheet1", Column: 1, Row: 2}, "=A1")

	sheet.Calculate()

	a1, ok := sheet.peekCell(CellLocation{Sheet: "Sheet1", Column: 1, Row: 1})
	require.True(t, ok)
	require.Equal(t, CellFormula, a1.Kind)
	require.NotNil(t, a1.Err)
	require.Equal(t, ErrCircularReference, a1.Err.Code)

	a2, ok := sheet.peekCell(CellLocation{Sheet: "Sheet1", Column: 1, Row: 2})
	require.True(t, ok)
	require.Equal(t, CellFormula, a2.Kind)
	require.NotNil(t, a2.Err)
	require.Equal(t, ErrCircularReference, a2.Err.Code)
}

func TestDivideByZeroPropagates(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "0")
	set(t, sheet, "A2", "=1/A1")
	set(t, sheet, "A3", "=A2+1")
	sheet.Calculate()

	v2 := value(t, sheet, "A2")
	require.True(t, v2.IsError())
	require.Equal(t, ErrDivideByZero, v2.Err)

	v3 := value(t, sheet, "A3")
	require.True(t, v3.IsError())
}

func TestNowAndTodayIdempotentWithinPass(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "=NOW()")
	set(t, sheet, "A2", "=NOW()")
	set(t, sheet, "A3", "=TODAY()")
	sheet.Calculate()

	require.Equal(t, value(t, sheet, "A1"), value(t, sheet, "A2"))

	todaySerial := value(t, sheet, "A3").Number
	require.Equal(t, float64(int64(value(t, sheet, "A1").Number)), todaySerial)
}

func TestDateArithmetic(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "=DATE(2026,1,15)")
	set(t, sheet, "A2", "=YEAR(A1)")
	set(t, sheet, "A3", "=MONTH(A1)")
	set(t, sheet, "A4", "=EDATE(A1,1)")
	set(t, sheet, "A5", "=MONTH(A4)")
	sheet.Calculate()

	require.Equal(t, NumberVariant(2026), value(t, sheet, "A2"))
	require.Equal(t, NumberVariant(1), value(t, sheet, "A3"))
	require.Equal(t, NumberVariant(2), value(t, sheet, "A5"))
}

func TestDays360EuropeanConvention(t *testing.T) {
	_, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "=DATE(2026,1,31)")
	set(t, sheet, "A2", "=DATE(2026,3,31)")
	set(t, sheet, "A3", "=DAYS360(A1,A2)")
	sheet.Calculate()

	require.Equal(t, NumberVariant(60), value(t, sheet, "A3"))
}

func TestNamedRangeAggregation(t *testing.T) {
	wb, sheet := newTestWorkbook(t)
	set(t, sheet, "A1", "10")
	set(t, sheet, "A2", "20")
	wb.DefineName("Inputs", CellLocation{Sheet: "Sheet1", Column: 1, Row: 1}, CellLocation{Sheet: "Sheet1", Column: 1, Row: 2})
	set(t, sheet, "B1", "=SUM(Inputs)")
	sheet.Calculate()
	require.Equal(t, NumberVariant(30), value(t, sheet, "B1"))
}
