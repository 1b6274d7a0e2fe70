package calclib

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// FactoryDefaults bundles every tunable a Workbook needs at construction
// time, replacing a set of package-level constants with an explicit,
// overridable struct (§9's design note: "no hidden global state").
// Grounded on the teacher's top-level Spreadsheet constructor options,
// enriched with the locale/clock seams the rest of the pack exercises.
type FactoryDefaults struct {
	// Epsilon is the numeric-equality tolerance Compare uses when two
	// cells are compared (=, <>, <, <=, >, >=) and when SortCells breaks
	// ties. Defaults to DefaultEpsilon when zero.
	Epsilon float64

	// Locale drives currency symbol and grouping-separator choice in
	// number formatting (§4.6). Defaults to language.English.
	Locale language.Tag

	// Clock supplies NOW()/TODAY(); defaults to WallClock{}. Tests
	// inject a fixed clock for deterministic assertions.
	Clock Clock

	// Logger receives structured events for sheet add/remove, failed
	// cell writes, recalculation passes and file I/O; structural edits
	// (insert/delete row or column) are not logged.
	// nil defaults to a no-op logger.
	Logger *zerolog.Logger

	// BackupOnWrite, when true, preserves the previous file contents at
	// path+".bak" before a Write replaces them (a supplemented feature,
	// see SPEC_FULL.md).
	BackupOnWrite bool
}

func (d FactoryDefaults) withDefaults() FactoryDefaults {
	if d.Epsilon <= 0 {
		d.Epsilon = DefaultEpsilon
	}
	if (d.Locale == language.Tag{}) {
		d.Locale = language.English
	}
	if d.Clock == nil {
		d.Clock = WallClock{}
	}
	return d
}

func (d FactoryDefaults) logger() zerolog.Logger {
	if d.Logger == nil {
		return zerolog.Nop()
	}
	return *d.Logger
}

// Workbook is the top-level container: a set of named sheets, the
// cross-sheet dependency graph, the shared function and named-range
// registries, and the set of cells still awaiting recalculation.
// Grounded on the teacher's Spreadsheet (sheet.go) — the teacher used
// one flat type for both "workbook" and "single sheet"; calclib splits
// that into Workbook (this type) and Sheet, matching §3's model of a
// workbook owning multiple sheets.
type Workbook struct {
	sheets     []*Sheet
	sheetIndex map[string]*Sheet

	graph       *DependencyGraph
	invalid     map[CellLocation]bool
	functions   *FunctionRegistry
	namedRanges *NamedRangeTable
	formats     *FormatRegistry

	options FactoryDefaults
	logger  zerolog.Logger

	path     string
	modified bool
}

// NewWorkbook creates an empty workbook (no sheets) configured with
// opts (missing fields take FactoryDefaults' zero-value meaning).
func NewWorkbook(opts FactoryDefaults) *Workbook {
	opts = opts.withDefaults()
	wb := &Workbook{
		sheetIndex:  make(map[string]*Sheet),
		graph:       NewDependencyGraph(),
		invalid:     make(map[CellLocation]bool),
		functions:   NewFunctionRegistry(),
		namedRanges: NewNamedRangeTable(),
		formats:     NewFormatRegistry(opts.Locale),
		options:     opts,
		logger:      opts.logger(),
	}
	return wb
}

// AddSheet creates and appends a new, empty sheet named name. Returns
// ErrDuplicateSheetName if a sheet by that name already exists (§3).
func (wb *Workbook) AddSheet(name string) (*Sheet, error) {
	if _, exists := wb.sheetIndex[name]; exists {
		return nil, NewCalcError(ErrDuplicateSheetName, name)
	}
	s := newSheet(name, wb)
	wb.sheets = append(wb.sheets, s)
	wb.sheetIndex[name] = s
	wb.modified = true
	wb.logger.Info().Str("sheet", name).Msg("sheet added")
	return s, nil
}

// RemoveSheet deletes the sheet named name, along with every cell of
// its the dependency graph's edges that touch it. Returns
// ErrSheetNotFound if no such sheet exists.
func (wb *Workbook) RemoveSheet(name string) error {
	s, ok := wb.sheetIndex[name]
	if !ok {
		return NewCalcError(ErrSheetNotFound, name)
	}
	for _, cell := range s.columns.AllCells() {
		wb.graph.Remove(cell.Location)
		delete(wb.invalid, cell.Location)
	}
	delete(wb.sheetIndex, name)
	for i, sheet := range wb.sheets {
		if sheet == s {
			wb.sheets = append(wb.sheets[:i], wb.sheets[i+1:]...)
			break
		}
	}
	wb.modified = true
	wb.logger.Info().Str("sheet", name).Msg("sheet removed")
	return nil
}

// Sheet returns the sheet named name, if it exists.
func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	s, ok := wb.sheetIndex[name]
	return s, ok
}

// Sheets lists every sheet in creation order.
func (wb *Workbook) Sheets() []*Sheet {
	return append([]*Sheet{}, wb.sheets...)
}

// DefineName creates or replaces a named range bound to [start,end] on
// a single sheet (a SPEC_FULL.md supplement over the base spec).
func (wb *Workbook) DefineName(name string, start, end CellLocation) {
	wb.namedRanges.Define(name, &RangeNode{
		Start: &LocationNode{Absolute: start},
		End:   &LocationNode{Absolute: end},
	})
	wb.scheduleFullRecalculate()
}

func (wb *Workbook) recalculate() []CellLocation {
	engine := &RecalcEngine{
		workbook:    wb,
		functions:   wb.functions,
		namedRanges: wb.namedRanges,
		clock:       wb.options.Clock,
		epsilon:     wb.options.Epsilon,
		logger:      wb.logger,
	}
	return engine.Run()
}

// scheduleFullRecalculate marks every formula cell on every sheet
// invalid and runs a recalculation pass immediately (§4.8's
// full-recalculate path, used after structural edits and on load).
func (wb *Workbook) scheduleFullRecalculate() []CellLocation {
	for _, s := range wb.sheets {
		for _, cell := range s.columns.AllCells() {
			if cell.Kind == CellFormula {
				wb.invalid[cell.Location] = true
			}
		}
	}
	return wb.recalculate()
}

// fixupAllFormulas applies FixupAddress to every formula cell on every
// sheet for a structural edit that happened on editSheet. A structural
// edit also moves cells within their own sheet's ColumnList (the insert/
// delete itself updates Cell.Location in place), so the graph's
// CellLocation-keyed edges would otherwise be left pointing at stale
// pre-shift keys; rebuildGraph throws the whole graph away and refills
// it from each cell's current Location rather than trying to patch
// individual entries in place.
func (wb *Workbook) fixupAllFormulas(editSheet string, column, row, offset int) {
	for _, s := range wb.sheets {
		for _, cell := range s.columns.AllCells() {
			if cell.Kind != CellFormula || cell.FormulaTree == nil {
				continue
			}
			cell.FormulaTree.FixupAddress(cell.Location, editSheet, column, row, offset)
		}
	}
	wb.rebuildGraph()
}

// rebuildGraph discards the dependency graph and refills it from every
// formula cell's current precedents, across every sheet.
func (wb *Workbook) rebuildGraph() {
	wb.graph = NewDependencyGraph()
	for _, s := range wb.sheets {
		for _, cell := range s.columns.AllCells() {
			if cell.Kind == CellFormula && cell.FormulaTree != nil {
				wb.graph.SetPrecedents(cell.Location, cell.Dependents())
			}
		}
	}
}

// Open reads a workbook from path (§4.9/§6's persistence format).
func Open(path string, opts FactoryDefaults) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapCalcError(ErrFileNotFound, path, err)
		}
		return nil, wrapCalcError(ErrFileLoadFailed, path, err)
	}
	wb, err := deserializeWorkbook(data, opts)
	if err != nil {
		return nil, wrapCalcError(ErrFileLoadFailed, path, err)
	}
	wb.path = path
	wb.modified = false
	wb.scheduleFullRecalculate()
	wb.logger.Info().Str("path", path).Int("sheets", len(wb.sheets)).Msg("workbook loaded")
	return wb, nil
}

// Write persists the workbook to its current path (or to path, if
// given), guarding the write with an advisory file lock so two
// processes cannot interleave writes to the same file, and writing
// through a uniquely-named temp file so a crash mid-write cannot leave
// a truncated file in place (§4.9's durability note).
func (wb *Workbook) Write(path string) error {
	if path == "" {
		path = wb.path
	}
	if path == "" {
		return NewCalcError(ErrFileWriteFailed, "no path set for this workbook")
	}

	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return wrapCalcError(ErrFileWriteFailed, "could not acquire write lock", err)
	}
	defer lock.Unlock()

	data, err := serializeWorkbook(wb)
	if err != nil {
		return wrapCalcError(ErrFileWriteFailed, "serialization failed", err)
	}

	if wb.options.BackupOnWrite {
		if _, statErr := os.Stat(path); statErr == nil {
			if copyErr := copyFile(path, path+".bak"); copyErr != nil {
				wb.logger.Warn().Err(copyErr).Msg("backup copy failed; continuing with write")
			}
		}
	}

	tmpName := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%s", filepath.Base(path), uuid.New().String()))
	if err := os.WriteFile(tmpName, data, 0o644); err != nil {
		return wrapCalcError(ErrFileWriteFailed, "temp file write failed", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return wrapCalcError(ErrFileWriteFailed, "atomic rename failed", err)
	}

	wb.path = path
	wb.modified = false
	wb.logger.Info().Str("path", path).Time("at", time.Now()).Msg("workbook written")
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// Modified reports whether the workbook has unwritten changes.
func (wb *Workbook) Modified() bool { return wb.modified }

// persistedCell and persistedSheet are the JSON-on-disk shapes (§4.9):
// formulas are stored in raw (relative-address) form so they survive
// being loaded back onto the same coordinates unchanged in meaning.
type persistedCell struct {
	Column        int    `json:"column"`
	Row           int    `json:"row"`
	Raw           string `json:"raw"`
	FormatKind    int    `json:"formatKind"`
	Decimals      int    `json:"decimals,omitempty"`
	Thousands     bool   `json:"thousands,omitempty"`
	CustomPattern string `json:"customPattern,omitempty"`
	Alignment     int    `json:"alignment,omitempty"`
}

type persistedSheet struct {
	Name  string          `json:"name"`
	Cells []persistedCell `json:"cells"`
}

type persistedWorkbook struct {
	Sheets []persistedSheet `json:"sheets"`
}

func serializeWorkbook(wb *Workbook) ([]byte, error) {
	out := persistedWorkbook{}
	for _, s := range wb.sheets {
		ps := persistedSheet{Name: s.Name}
		for _, cell := range s.columns.AllCells() {
			if cell.IsEmpty() {
				continue
			}
			ps.Cells = append(ps.Cells, persistedCell{
				Column:        cell.Location.Column,
				Row:           cell.Location.Row,
				Raw:           cell.ToRawString(),
				FormatKind:    int(cell.Format.Kind),
				Decimals:      cell.Format.DecimalPlaces,
				Thousands:     cell.Format.ThousandsSeparator,
				CustomPattern: cell.Format.CustomPattern,
				Alignment:     int(cell.Alignment),
			})
		}
		out.Sheets = append(out.Sheets, ps)
	}
	return json.MarshalIndent(out, "", "  ")
}

func deserializeWorkbook(data []byte, opts FactoryDefaults) (*Workbook, error) {
	var in persistedWorkbook
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	wb := NewWorkbook(opts)
	for _, ps := range in.Sheets {
		sheet, err := wb.AddSheet(ps.Name)
		if err != nil {
			return nil, err
		}
		for _, pc := range ps.Cells {
			loc := CellLocation{Sheet: ps.Name, Column: pc.Column, Row: pc.Row}
			if err := sheet.SetCellContent(loc, pc.Raw); err != nil {
				// a cell that failed to parse on save should not fail the
				// whole load; it is kept as a formula-in-error cell.
				wb.logger.Warn().Str("cell", loc.String()).Err(err).Msg("cell failed to reparse on load")
			}
			cell := sheet.Cell(loc)
			cell.SetFormat(CellFormat{
				Kind:               FormatKind(pc.FormatKind),
				DecimalPlaces:      pc.Decimals,
				ThousandsSeparator: pc.Thousands,
				CustomPattern:      pc.CustomPattern,
			})
			cell.Alignment = CellAlignment(pc.Alignment)
		}
	}
	wb.modified = false
	return wb, nil
}
