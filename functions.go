package calclib

import (
	"math"
	"strings"
	"time"
)

// Clock abstracts wall-clock time so NOW()/TODAY() are testable,
// grounded on the teacher's Clock/WallClock seam in builtin.go.
type Clock interface {
	Now() time.Time
}

// WallClock is the production Clock, backed by time.Now.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// FunctionDescriptor is a registry entry: an arity contract plus the
// callable itself, with no reflection involved in dispatch (§9's design
// note generalizing the teacher's switch-based BuiltInFunctions.Call).
type FunctionDescriptor struct {
	MinArgs       int
	MaxArgs       int // ignored when Variadic; -1 is conventional for "none"
	Variadic      bool
	ExpandsRanges bool // whether range arguments flatten into scalar Variants
	Call          func(ctx *CalculationContext, args []Variant) Variant
}

func (d *FunctionDescriptor) acceptsArity(n int) bool {
	if n < d.MinArgs {
		return false
	}
	if d.Variadic {
		return n <= 255
	}
	return n <= d.MaxArgs
}

// FunctionRegistry maps upper-case function names to descriptors (§4.4, §9).
type FunctionRegistry struct {
	descriptors map[string]*FunctionDescriptor
}

// NewFunctionRegistry builds a registry with every mandatory (§4.4) and
// supplemented (SPEC_FULL.md) built-in function registered.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{descriptors: make(map[string]*FunctionDescriptor)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a function descriptor under name (upper-cased).
func (r *FunctionRegistry) Register(name string, d *FunctionDescriptor) {
	r.descriptors[strings.ToUpper(name)] = d
}

// Lookup returns the descriptor for name (case-insensitive).
func (r *FunctionRegistry) Lookup(name string) (*FunctionDescriptor, bool) {
	d, ok := r.descriptors[strings.ToUpper(name)]
	return d, ok
}

func (r *FunctionRegistry) registerBuiltins() {
	r.Register("SUM", &FunctionDescriptor{MinArgs: 0, Variadic: true, ExpandsRanges: true, Call: fnSum})
	r.Register("AVERAGE", &FunctionDescriptor{MinArgs: 1, Variadic: true, ExpandsRanges: true, Call: fnAverage})
	r.Register("COUNT", &FunctionDescriptor{MinArgs: 0, Variadic: true, ExpandsRanges: true, Call: fnCount})
	r.Register("COUNTA", &FunctionDescriptor{MinArgs: 0, Variadic: true, ExpandsRanges: true, Call: fnCountA})
	r.Register("MAX", &FunctionDescriptor{MinArgs: 1, Variadic: true, ExpandsRanges: true, Call: fnMax})
	r.Register("MIN", &FunctionDescriptor{MinArgs: 1, Variadic: true, ExpandsRanges: true, Call: fnMin})
	r.Register("IF", &FunctionDescriptor{MinArgs: 2, MaxArgs: 3, Call: fnIf})
	r.Register("AND", &FunctionDescriptor{MinArgs: 1, Variadic: true, ExpandsRanges: true, Call: fnAnd})
	r.Register("OR", &FunctionDescriptor{MinArgs: 1, Variadic: true, ExpandsRanges: true, Call: fnOr})
	r.Register("NOT", &FunctionDescriptor{MinArgs: 1, MaxArgs: 1, Call: fnNot})
	r.Register("ABS", &FunctionDescriptor{MinArgs: 1, MaxArgs: 1, Call: fnAbs})
	r.Register("ROUND", &FunctionDescriptor{MinArgs: 2, MaxArgs: 2, Call: fnRound})
	r.Register("CONCATENATE", &FunctionDescriptor{MinArgs: 0, Variadic: true, Call: fnConcatenate})
	r.Register("NOW", &FunctionDescriptor{MinArgs: 0, MaxArgs: 0, Call: fnNow})
	r.Register("TODAY", &FunctionDescriptor{MinArgs: 0, MaxArgs: 0, Call: fnToday})
	r.Register("TIME", &FunctionDescriptor{MinArgs: 3, MaxArgs: 3, Call: fnTime})
	r.Register("DATE", &FunctionDescriptor{MinArgs: 3, MaxArgs: 3, Call: fnDate})
	r.Register("EDATE", &FunctionDescriptor{MinArgs: 2, MaxArgs: 2, Call: fnEdate})
	r.Register("DAYS360", &FunctionDescriptor{MinArgs: 2, MaxArgs: 2, Call: fnDays360})
	r.Register("YEAR", &FunctionDescriptor{MinArgs: 1, MaxArgs: 1, Call: fnYear})
	r.Register("MONTH", &FunctionDescriptor{MinArgs: 1, MaxArgs: 1, Call: fnMonth})
}

// firstError returns the first error Variant in args, if any.
func firstError(args []Variant) (Variant, bool) {
	for _, a := range args {
		if a.IsError() {
			return a, true
		}
	}
	return Variant{}, false
}

func fnSum(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	total := 0.0
	for _, a := range args {
		if !a.HasValue() {
			continue
		}
		n, err := a.AsNumber()
		if err != nil {
			return ErrorVariant(ErrArgumentKind)
		}
		total += n
	}
	return NumberVariant(total)
}

func fnAverage(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	total, count := 0.0, 0
	for _, a := range args {
		if !a.HasValue() {
			continue
		}
		n, err := a.AsNumber()
		if err != nil {
			return ErrorVariant(ErrArgumentKind)
		}
		total += n
		count++
	}
	if count == 0 {
		return ErrorVariant(ErrDivideByZero)
	}
	return NumberVariant(total / float64(count))
}

func fnCount(_ *CalculationContext, args []Variant) Variant {
	count := 0
	for _, a := range args {
		if a.Tag == VariantNumber {
			count++
		}
	}
	return NumberVariant(float64(count))
}

func fnCountA(_ *CalculationContext, args []Variant) Variant {
	count := 0
	for _, a := range args {
		if a.HasValue() {
			count++
		}
	}
	return NumberVariant(float64(count))
}

func fnMax(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	best := math.Inf(-1)
	found := false
	for _, a := range args {
		if !a.HasValue() {
			continue
		}
		n, err := a.AsNumber()
		if err != nil {
			return ErrorVariant(ErrArgumentKind)
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	if !found {
		return NumberVariant(0)
	}
	return NumberVariant(best)
}

func fnMin(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	best := math.Inf(1)
	found := false
	for _, a := range args {
		if !a.HasValue() {
			continue
		}
		n, err := a.AsNumber()
		if err != nil {
			return ErrorVariant(ErrArgumentKind)
		}
		if !found || n < best {
			best, found = n, true
		}
	}
	if !found {
		return NumberVariant(0)
	}
	return NumberVariant(best)
}

func fnIf(_ *CalculationContext, args []Variant) Variant {
	if args[0].IsError() {
		return args[0]
	}
	cond := truthy(args[0])
	if cond {
		return args[1]
	}
	if len(args) == 3 {
		return args[2]
	}
	return BoolVariant(false)
}

func truthy(v Variant) bool {
	switch v.Tag {
	case VariantBoolean:
		return v.Bool
	default:
		n, err := v.AsNumber()
		return err == nil && n != 0
	}
}

func fnAnd(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	for _, a := range args {
		if !truthy(a) {
			return BoolVariant(false)
		}
	}
	return BoolVariant(true)
}

func fnOr(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	for _, a := range args {
		if truthy(a) {
			return BoolVariant(true)
		}
	}
	return BoolVariant(false)
}

func fnNot(_ *CalculationContext, args []Variant) Variant {
	if args[0].IsError() {
		return args[0]
	}
	return BoolVariant(!truthy(args[0]))
}

func fnAbs(_ *CalculationContext, args []Variant) Variant {
	n, err := args[0].AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	return NumberVariant(math.Abs(n))
}

func fnRound(_ *CalculationContext, args []Variant) Variant {
	n, err := args[0].AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	places, err := args[1].AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	factor := math.Pow(10, places)
	return NumberVariant(math.Round(n*factor) / factor)
}

func fnConcatenate(_ *CalculationContext, args []Variant) Variant {
	if e, ok := firstError(args); ok {
		return e
	}
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.String())
	}
	return TextVariant(sb.String())
}

func fnNow(ctx *CalculationContext, _ []Variant) Variant {
	serial := ctx.nowSerial()
	ctx.applyDefaultFormat(CellFormat{Kind: FormatCustom, CustomPattern: "dd/mm/yyyy h:mm"})
	return NumberVariant(serial)
}

func fnToday(ctx *CalculationContext, _ []Variant) Variant {
	serial := ctx.todaySerial()
	ctx.applyDefaultFormat(CellFormat{Kind: FormatDateDMY})
	return NumberVariant(serial)
}

func fnTime(_ *CalculationContext, args []Variant) Variant {
	h, e1 := args[0].AsNumber()
	m, e2 := args[1].AsNumber()
	s, e3 := args[2].AsNumber()
	if e1 != nil || e2 != nil || e3 != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	fraction := (h*3600 + m*60 + s) / 86400
	return NumberVariant(fraction)
}

func fnDate(_ *CalculationContext, args []Variant) Variant {
	y, e1 := args[0].AsNumber()
	mo, e2 := args[1].AsNumber()
	d, e3 := args[2].AsNumber()
	if e1 != nil || e2 != nil || e3 != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	t := time.Date(int(y), time.Month(int(mo)), int(d), 0, 0, 0, 0, time.UTC)
	return NumberVariant(DateToSerial(t))
}

func fnEdate(_ *CalculationContext, args []Variant) Variant {
	start, e1 := args[0].AsNumber()
	months, e2 := args[1].AsNumber()
	if e1 != nil || e2 != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	t := SerialToDate(start).AddDate(0, int(months), 0)
	return NumberVariant(DateToSerial(t))
}

// fnDays360 implements the 30/360 European convention (§4.4): swap
// endpoints if end<start, clamp day-31 to day-30, and treat the
// last day of February as day 30.
func fnDays360(_ *CalculationContext, args []Variant) Variant {
	startS, e1 := args[0].AsNumber()
	endS, e2 := args[1].AsNumber()
	if e1 != nil || e2 != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	swapped := false
	if endS < startS {
		startS, endS = endS, startS
		swapped = true
	}
	start := SerialToDate(startS)
	end := SerialToDate(endS)

	d1, m1, y1 := start.Day(), int(start.Month()), start.Year()
	d2, m2, y2 := end.Day(), int(end.Month()), end.Year()

	if isLastDayOfFebruary(start) {
		d1 = 30
	}
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}

	days := float64((y2-y1)*360 + (m2-m1)*30 + (d2 - d1))
	if swapped {
		days = -days
	}
	return NumberVariant(days)
}

func isLastDayOfFebruary(t time.Time) bool {
	if t.Month() != time.February {
		return false
	}
	return t.AddDate(0, 0, 1).Month() != time.February
}

func fnYear(_ *CalculationContext, args []Variant) Variant {
	n, err := args[0].AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	return NumberVariant(float64(SerialToDate(n).Year()))
}

func fnMonth(_ *CalculationContext, args []Variant) Variant {
	n, err := args[0].AsNumber()
	if err != nil {
		return ErrorVariant(ErrArgumentKind)
	}
	return NumberVariant(float64(SerialToDate(n).Month()))
}
