package calclib

import "fmt"

// ErrorCode identifies the kind of failure calclib can report, grouped
// by where they surface in the API (§7 of the design notes).
type ErrorCode int

const (
	// Parse errors: raised during Cell.SetContent.
	ErrInvalidFormula ErrorCode = iota + 1
	ErrInvalidNumber
	ErrInvalidAddress
	ErrInvalidRelativeAddress

	// Evaluation errors: never propagate out of Calculate; the offending
	// cell is marked Err and its dependents evaluate to error too.
	ErrCircularReference
	ErrInvalidReference
	ErrNumericOverflow
	ErrDateOutOfRange
	ErrArgumentCount
	ErrArgumentKind
	ErrDivideByZero

	// Structural errors.
	ErrSheetNotFound
	ErrDuplicateSheetName

	// I/O errors: propagate from Open/Write.
	ErrFileNotFound
	ErrFileLoadFailed
	ErrFileWriteFailed
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidFormula:         "invalid-formula",
	ErrInvalidNumber:          "invalid-number",
	ErrInvalidAddress:         "invalid-address",
	ErrInvalidRelativeAddress: "invalid-relative-address",
	ErrCircularReference:      "circular-reference",
	ErrInvalidReference:       "invalid-reference",
	ErrNumericOverflow:        "numeric-overflow",
	ErrDateOutOfRange:         "date-out-of-range",
	ErrArgumentCount:          "argument-count",
	ErrArgumentKind:           "argument-kind",
	ErrDivideByZero:           "divide-by-zero",
	ErrSheetNotFound:          "sheet-not-found",
	ErrDuplicateSheetName:     "duplicate-sheet-name",
	ErrFileNotFound:           "file-not-found",
	ErrFileLoadFailed:         "file-load-failed",
	ErrFileWriteFailed:        "file-write-failed",
}

// String renders the wire/display name of the error code, e.g. "invalid-formula".
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "unknown-error"
}

// errorSentinels maps evaluation error codes to the Excel-style cell
// sentinel text a caller renders in place of a value. Kept as the
// spreadsheet-facing vocabulary; ErrorCode itself is the API-facing one.
var errorSentinels = map[ErrorCode]string{
	ErrCircularReference: "#CIRCULAR!",
	ErrInvalidReference:  "#REF!",
	ErrNumericOverflow:   "#NUM!",
	ErrDateOutOfRange:    "#NUM!",
	ErrArgumentCount:     "#N/A",
	ErrArgumentKind:      "#VALUE!",
	ErrDivideByZero:      "#DIV/0!",
	ErrInvalidFormula:    "#NAME?",
}

// sentinel returns the display sentinel for an evaluation error code,
// defaulting to a generic marker for codes with no dedicated glyph.
func (c ErrorCode) sentinel() string {
	if s, ok := errorSentinels[c]; ok {
		return s
	}
	return "#ERROR!"
}

// CalcError is the error type calclib's parse, sheet and workbook APIs
// return (ColumnIndex returns a plain error). It carries a
// closed ErrorCode plus an optional human-readable position/cause, and
// unwraps so callers can use errors.Is/errors.As against the underlying
// cause when one is present.
type CalcError struct {
	Code     ErrorCode
	Message  string
	Position int // optional; -1 when not applicable
	cause    error
}

func (e *CalcError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *CalcError) Unwrap() error {
	return e.cause
}

// NewCalcError builds a CalcError with no position and no wrapped cause.
func NewCalcError(code ErrorCode, message string) *CalcError {
	return &CalcError{Code: code, Message: message, Position: -1}
}

// NewCalcErrorAt builds a CalcError pinpointing a lexical position, e.g.
// the offset of a parse failure in the formula text.
func NewCalcErrorAt(code ErrorCode, message string, position int) *CalcError {
	return &CalcError{Code: code, Message: message, Position: position}
}

// wrapCalcError builds a CalcError that wraps an underlying cause,
// typically an *os.PathError from a failed Open/Write.
func wrapCalcError(code ErrorCode, message string, cause error) *CalcError {
	return &CalcError{Code: code, Message: message, Position: -1, cause: cause}
}
