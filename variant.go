package calclib

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VariantTag identifies the payload a Variant carries. Empty sorts
// before Number which sorts before Text, per §3's comparison-by-tag
// fallback, with Boolean treated as Number for ordering purposes.
type VariantTag int

const (
	VariantEmpty VariantTag = iota
	VariantNumber
	VariantText
	VariantBoolean
	VariantError
)

// Variant is the single value type threaded through formula evaluation:
// a tagged number/text/boolean/empty/error value with arithmetic,
// comparison, and coercion rules (§4.1).
type Variant struct {
	Tag    VariantTag
	Number float64
	Text   string
	Bool   bool
	Err    ErrorCode
}

// DefaultEpsilon is the numeric-equality tolerance used when a
// FactoryDefaults.Epsilon is not supplied. Matches the source behaviour
// called out in §9 as coarse for financial data; callers that need
// pence-accurate comparisons should set FactoryDefaults.Epsilon smaller.
const DefaultEpsilon = 0.01

// Empty is the canonical empty Variant.
var Empty = Variant{Tag: VariantEmpty}

// NumberVariant builds a numeric Variant.
func NumberVariant(n float64) Variant { return Variant{Tag: VariantNumber, Number: n} }

// TextVariant builds a text Variant.
func TextVariant(s string) Variant { return Variant{Tag: VariantText, Text: s} }

// BoolVariant builds a boolean Variant.
func BoolVariant(b bool) Variant { return Variant{Tag: VariantBoolean, Bool: b} }

// ErrorVariant builds an error-tagged Variant carrying the given code.
func ErrorVariant(code ErrorCode) Variant { return Variant{Tag: VariantError, Err: code} }

// HasValue is false only for Empty; empty contributes nothing to
// aggregations such as SUM/AVERAGE/COUNT.
func (v Variant) HasValue() bool { return v.Tag != VariantEmpty }

// IsError reports whether v is an error sentinel.
func (v Variant) IsError() bool { return v.Tag == VariantError }

// AsNumber coerces v to a float64, per §4.1's coercion rules: booleans
// become 0/1, text is parsed as a number, empty becomes 0. Returns an
// error-tagged Variant's code when coercion is impossible.
func (v Variant) AsNumber() (float64, *CalcError) {
	switch v.Tag {
	case VariantNumber:
		return v.Number, nil
	case VariantBoolean:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case VariantEmpty:
		return 0, nil
	case VariantText:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, NewCalcError(ErrArgumentKind, fmt.Sprintf("cannot coerce %q to number", v.Text))
		}
		return n, nil
	case VariantError:
		return 0, NewCalcError(v.Err, "")
	}
	return 0, NewCalcError(ErrArgumentKind, "unknown variant tag")
}

// String renders the "general" display form of v: numbers strip
// trailing zeros, booleans render as TRUE/FALSE, errors render as their
// sentinel glyph.
func (v Variant) String() string {
	switch v.Tag {
	case VariantEmpty:
		return ""
	case VariantNumber:
		return formatGeneralNumber(v.Number)
	case VariantText:
		return v.Text
	case VariantBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case VariantError:
		return v.Err.sentinel()
	}
	return ""
}

// formatGeneralNumber renders a float with no fixed decimal padding,
// stripping trailing zeros — the "General" numeric format of §4.6.
func formatGeneralNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ErrNumericOverflow.sentinel()
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	return s
}

// Add implements +. Non-numeric operands coerce to number; failure
// propagates a numeric-coercion error Variant rather than a Go error,
// matching the "errors propagate through the cell" policy of §7.
func (v Variant) Add(other Variant) Variant {
	return numericBinary(v, other, func(a, b float64) float64 { return a + b })
}

// Sub implements binary −.
func (v Variant) Sub(other Variant) Variant {
	return numericBinary(v, other, func(a, b float64) float64 { return a - b })
}

// Mul implements ×.
func (v Variant) Mul(other Variant) Variant {
	return numericBinary(v, other, func(a, b float64) float64 { return a * b })
}

// Div implements ÷. Division by zero yields ErrDivideByZero (#DIV/0!).
func (v Variant) Div(other Variant) Variant {
	a, errA := v.AsNumber()
	if errA != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	b, errB := other.AsNumber()
	if errB != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	if b == 0 {
		return ErrorVariant(ErrDivideByZero)
	}
	return NumberVariant(a / b)
}

// Pow implements ^.
func (v Variant) Pow(other Variant) Variant {
	return numericBinary(v, other, math.Pow)
}

// Neg implements unary −.
func (v Variant) Neg() Variant {
	n, err := v.AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	return NumberVariant(-n)
}

// Percent implements the trailing-% lexical suffix: divides by 100.
func (v Variant) Percent() Variant {
	n, err := v.AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	return NumberVariant(n / 100)
}

func numericBinary(a, b Variant, op func(x, y float64) float64) Variant {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	x, errA := a.AsNumber()
	if errA != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	y, errB := b.AsNumber()
	if errB != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	result := op(x, y)
	if math.IsInf(result, 0) {
		return ErrorVariant(ErrNumericOverflow)
	}
	return NumberVariant(result)
}

// Concat implements &: concatenation with a non-string operand coerces
// using the general rendering of the operand (§4.1).
func (v Variant) Concat(other Variant) Variant {
	if v.IsError() {
		return v
	}
	if other.IsError() {
		return other
	}
	return TextVariant(v.String() + other.String())
}

// CompareResult is the outcome of comparing two Variants.
type CompareResult int

const (
	CompareLess CompareResult = iota - 1
	CompareEqual
	CompareGreater
)

// Compare implements =, <>, <, <=, >, >= with the tolerance and
// tag-ordering rules of §3/§4.1: a number/string pair coerces the
// string to number when it parses, else the comparison falls back to
// tag order (empty < number < text) and then lexical order within the
// same tag. epsilon is the numeric-equality tolerance to apply (pass
// DefaultEpsilon, or FactoryDefaults.Epsilon, from the caller).
func Compare(a, b Variant, epsilon float64) CompareResult {
	an, aErrNum := a.AsNumber()
	bn, bErrNum := b.AsNumber()
	if aErrNum == nil && bErrNum == nil && (a.Tag == VariantNumber || a.Tag == VariantBoolean || a.Tag == VariantEmpty) && (b.Tag == VariantNumber || b.Tag == VariantBoolean || b.Tag == VariantEmpty) {
		return compareNumbers(an, bn, epsilon)
	}
	// number vs text: coerce the string to number when it parses.
	if a.Tag == VariantNumber && b.Tag == VariantText {
		if bn, err := b.AsNumber(); err == nil {
			return compareNumbers(an, bn, epsilon)
		}
		return CompareLess // number < text by tag order when not parseable
	}
	if a.Tag == VariantText && b.Tag == VariantNumber {
		if an, err := a.AsNumber(); err == nil {
			return compareNumbers(an, bn, epsilon)
		}
		return CompareGreater
	}
	if a.Tag == b.Tag {
		switch a.Tag {
		case VariantText:
			return compareStrings(a.Text, b.Text)
		case VariantBoolean:
			return compareNumbers(boolToFloat(a.Bool), boolToFloat(b.Bool), epsilon)
		case VariantEmpty:
			return CompareEqual
		}
	}
	return compareNumbers(tagOrder(a.Tag), tagOrder(b.Tag), epsilon)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func tagOrder(t VariantTag) float64 {
	switch t {
	case VariantEmpty:
		return 0
	case VariantNumber, VariantBoolean:
		return 1
	default:
		return 2
	}
}

func compareNumbers(a, b, epsilon float64) CompareResult {
	// A negative epsilon means "unset, use the default tolerance"; an
	// explicit zero (or any other non-negative value) is honored as-is
	// so a caller can ask for exact comparison, not just a smaller one.
	if epsilon < 0 {
		epsilon = DefaultEpsilon
	}
	if math.Abs(a-b) <= epsilon {
		return CompareEqual
	}
	if a < b {
		return CompareLess
	}
	return CompareGreater
}

func compareStrings(a, b string) CompareResult {
	switch strings.Compare(a, b) {
	case 0:
		return CompareEqual
	case -1:
		return CompareLess
	default:
		return CompareGreater
	}
}
