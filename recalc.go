package calclib

import "github.com/rs/zerolog"

// evaluationPass holds the state shared by every cell evaluated within
// one Calculate() call: the clock-derived NOW()/TODAY() cache (so both
// are idempotent within a pass, per §8's testable property) and the
// update-list of cells already resolved this pass (§4.5's
// short-circuit-on-already-computed rule).
type evaluationPass struct {
	clock       Clock
	nowSerial   *float64
	todaySerial *float64
	updateList  map[CellLocation]bool // loc -> evaluated-without-error this pass
}

// CalculationContext is threaded through AST evaluation (§4.5): it
// carries the owning workbook, the source cell being computed, a
// reference-stack for cycle detection, and the pass-wide state above.
type CalculationContext struct {
	workbook        *Workbook
	cellLoc         CellLocation
	cell            *Cell
	referenceStack  []CellLocation
	pass            *evaluationPass
	functions       *FunctionRegistry
	namedRanges     *NamedRangeTable
	epsilonTunable  float64
}

func (ctx *CalculationContext) sourceCell() CellLocation { return ctx.cellLoc }
func (ctx *CalculationContext) epsilon() float64         { return ctx.epsilonTunable }

func (ctx *CalculationContext) nowSerial() float64 {
	if ctx.pass.nowSerial == nil {
		v := DateToSerial(ctx.pass.clock.Now())
		ctx.pass.nowSerial = &v
	}
	return *ctx.pass.nowSerial
}

func (ctx *CalculationContext) todaySerial() float64 {
	if ctx.pass.todaySerial == nil {
		v := float64(int64(ctx.nowSerial()))
		ctx.pass.todaySerial = &v
	}
	return *ctx.pass.todaySerial
}

// applyDefaultFormat sets the source cell's format as a side effect of
// NOW()/TODAY() evaluation, but only when the cell has no explicit
// format override (§4.4).
func (ctx *CalculationContext) applyDefaultFormat(f CellFormat) {
	if !ctx.cell.FormatExplicit {
		ctx.cell.Format = f
	}
}

// evaluateLocation is the heart of §4.5: cycle detection, cross-sheet
// dispatch, short-circuit reuse of already-computed formula cells, and
// the address-error sentinel.
func (ctx *CalculationContext) evaluateLocation(loc CellLocation) Variant {
	sheet, ok := ctx.workbook.Sheet(loc.Sheet)
	if !ok {
		return ErrorVariant(ErrSheetNotFound)
	}
	cell, ok := sheet.peekCell(loc)
	if !ok {
		return Empty
	}
	if cell.Kind != CellFormula {
		return cell.Value
	}

	done, seen := ctx.pass.updateList[loc]
	if seen && done {
		return cell.Value
	}
	if seen { // present but recorded with error this pass; reuse the error
		return cell.Value
	}

	if !ctx.workbook.invalid[loc] {
		// Not invalidated this pass: its cached value is already current.
		ctx.pass.updateList[loc] = cell.Err == nil
		return cell.Value
	}

	if cell.FormulaTree == nil { // formula that failed to parse: its error is its value
		code := ErrInvalidFormula
		if cell.Err != nil {
			code = cell.Err.Code
		}
		cell.Value = ErrorVariant(code)
		ctx.pass.updateList[loc] = false
		delete(ctx.workbook.invalid, loc)
		return cell.Value
	}

	// Cycle guard (§4.5, §9): the primary detector is the graph-based
	// write-time check in Sheet.SetCellContent; this is the safety net
	// for whatever it under-reports (e.g. a cell that was circular
	// already at write time and is only now being recalculated). A
	// mutual cycle of depth >= 2 never repeats at the top of the stack,
	// so every location on the stack must be checked, not just the last.
	for _, seen := range ctx.referenceStack {
		if seen.Equal(loc) {
			cell.Err = NewCalcError(ErrCircularReference, "")
			cell.Value = ErrorVariant(ErrCircularReference)
			ctx.pass.updateList[loc] = false
			delete(ctx.workbook.invalid, loc)
			return cell.Value
		}
	}

	childCtx := &CalculationContext{
		workbook:       ctx.workbook,
		cellLoc:        loc,
		cell:           cell,
		referenceStack: append(append([]CellLocation{}, ctx.referenceStack...), loc),
		pass:           ctx.pass,
		functions:      ctx.functions,
		namedRanges:    ctx.namedRanges,
		epsilonTunable: ctx.epsilonTunable,
	}

	result := cell.FormulaTree.Evaluate(childCtx)
	cell.Value = result
	if result.IsError() {
		cell.Err = NewCalcError(result.Err, "")
		ctx.pass.updateList[loc] = false
	} else {
		cell.Err = nil
		ctx.pass.updateList[loc] = true
	}
	delete(ctx.workbook.invalid, loc)
	return result
}

// RecalcEngine drives recalculation across a Workbook: given a set of
// invalid cells, it evaluates each in turn (recursing into precedents
// as needed) and returns the delta of updated cells (§4.8, §5's
// ordering-guarantee note).
type RecalcEngine struct {
	workbook    *Workbook
	functions   *FunctionRegistry
	namedRanges *NamedRangeTable
	clock       Clock
	epsilon     float64
	logger      zerolog.Logger
}

// Run evaluates every cell currently in workbook.invalid, returning the
// cells whose value or error state changed as a result.
func (e *RecalcEngine) Run() []CellLocation {
	pass := &evaluationPass{clock: e.clock, updateList: make(map[CellLocation]bool)}

	// Snapshot the invalid set: evaluateLocation mutates workbook.invalid
	// as it resolves cells, so iterate over a stable copy.
	targets := make([]CellLocation, 0, len(e.workbook.invalid))
	for loc := range e.workbook.invalid {
		targets = append(targets, loc)
	}

	e.logger.Debug().Int("invalid", len(targets)).Msg("recalculation pass starting")

	var updated []CellLocation
	errorCount := 0
	for _, loc := range targets {
		if _, stillInvalid := e.workbook.invalid[loc]; !stillInvalid {
			continue // resolved already as a precedent of an earlier target
		}
		sheet, ok := e.workbook.Sheet(loc.Sheet)
		if !ok {
			delete(e.workbook.invalid, loc)
			continue
		}
		cell, ok := sheet.peekCell(loc)
		if !ok || cell.Kind != CellFormula {
			delete(e.workbook.invalid, loc)
			continue
		}
		ctx := &CalculationContext{
			workbook:       e.workbook,
			cellLoc:        loc,
			cell:           cell,
			pass:           pass,
			functions:      e.functions,
			namedRanges:    e.namedRanges,
			epsilonTunable: e.epsilon,
		}
		before := cell.Value
		beforeErr := cell.Err
		result := ctx.evaluateLocation(loc) // re-enters the same bookkeeping as a nested reference would
		_ = result
		if !valuesEqual(before, cell.Value, e.epsilon) || (beforeErr == nil) != (cell.Err == nil) {
			updated = append(updated, loc)
		}
		if cell.Err != nil {
			errorCount++
		}
	}

	e.logger.Debug().Int("updated", len(updated)).Int("errors", errorCount).Msg("recalculation pass finished")
	return updated
}

func valuesEqual(a, b Variant, epsilon float64) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case VariantNumber:
		return Compare(a, b, epsilon) == CompareEqual
	case VariantText:
		return a.Text == b.Text
	case VariantBoolean:
		return a.Bool == b.Bool
	case VariantError:
		return a.Err == b.Err
	default:
		return true
	}
}
