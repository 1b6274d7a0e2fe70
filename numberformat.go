package calclib

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatKind is the closed set of cell display formats (§3).
type FormatKind int

const (
	FormatGeneral FormatKind = iota
	FormatFixed
	FormatScientific
	FormatCurrency
	FormatPercent
	FormatText
	FormatDateDMY
	FormatDateDM
	FormatDateMY
	FormatTimeHMSZ
	FormatTimeHMS
	FormatTimeHM
	FormatTimeHMZ
	FormatCustom
)

// CellFormat bundles the kind plus the options that distinguish two
// formats of the same kind (decimal places, thousands separator, and a
// pattern string for FormatCustom).
type CellFormat struct {
	Kind               FormatKind
	DecimalPlaces      int
	ThousandsSeparator bool
	CustomPattern      string
}

// formatKey is the registry's cache key: (kind + options), per §3.
type formatKey struct {
	kind      FormatKind
	decimals  int
	thousands bool
}

// compiledFormatDescriptor is the cached, ready-to-call renderer for a
// given formatKey.
type compiledFormatDescriptor struct {
	render func(n float64) string
}

// FormatRegistry is the cached mapping from format key to compiled
// format descriptor described in §2 item 3 / §4.6. It is safe for
// concurrent compilation even though the rest of calclib is
// single-threaded (§5), since a registry may reasonably be shared by
// multiple Workbooks in a process.
type FormatRegistry struct {
	mu     sync.Mutex
	cache  map[formatKey]*compiledFormatDescriptor
	locale language.Tag
}

// NewFormatRegistry creates a registry that renders numbers using the
// given BCP-47 locale tag (e.g. language.English) for grouping and
// currency symbol selection.
func NewFormatRegistry(locale language.Tag) *FormatRegistry {
	return &FormatRegistry{
		cache:  make(map[formatKey]*compiledFormatDescriptor),
		locale: locale,
	}
}

// compile returns the compiled descriptor for (kind, decimals,
// thousands), building and caching it on first use.
func (r *FormatRegistry) compile(kind FormatKind, decimals int, thousands bool) *compiledFormatDescriptor {
	key := formatKey{kind: kind, decimals: decimals, thousands: thousands}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[key]; ok {
		return c
	}

	printer := message.NewPrinter(r.locale)
	var render func(float64) string

	switch kind {
	case FormatFixed:
		render = func(v float64) string {
			s := printer.Sprint(number.Decimal(v, number.MaxFractionDigits(decimals), number.MinFractionDigits(decimals)))
			if !thousands {
				s = stripGrouping(s)
			}
			return s
		}
	case FormatScientific:
		render = func(v float64) string {
			return strconv.FormatFloat(v, 'E', decimals, 64)
		}
	case FormatCurrency:
		unit, err := currency.FromRegion(currencyRegion(r.locale))
		if err != nil {
			unit = currency.USD
		}
		render = func(v float64) string {
			s := printer.Sprint(currency.Symbol(unit.Amount(v)))
			if !thousands {
				s = stripGrouping(s)
			}
			return s
		}
	case FormatPercent:
		render = func(v float64) string {
			return printer.Sprint(number.Percent(v, number.MaxFractionDigits(decimals)))
		}
	default:
		render = formatGeneralNumber
	}

	compiled := &compiledFormatDescriptor{render: render}
	r.cache[key] = compiled
	return compiled
}

// Render dispatches a Variant to its rendered display string for the
// given cell format, per §4.6. Date/time kinds and FormatText/FormatGeneral
// bypass the numeric registry.
func (r *FormatRegistry) Render(v Variant, f CellFormat) string {
	if v.IsError() {
		return v.Err.sentinel()
	}
	switch f.Kind {
	case FormatGeneral:
		return v.String()
	case FormatText:
		return v.String()
	case FormatFixed, FormatScientific, FormatCurrency, FormatPercent:
		n, err := v.AsNumber()
		if err != nil {
			return ErrArgumentKind.sentinel()
		}
		return r.compile(f.Kind, f.DecimalPlaces, f.ThousandsSeparator).render(n)
	case FormatDateDMY, FormatDateDM, FormatDateMY, FormatTimeHMSZ, FormatTimeHMS, FormatTimeHM, FormatTimeHMZ:
		n, err := v.AsNumber()
		if err != nil {
			return ErrArgumentKind.sentinel()
		}
		return renderDateTimePattern(n, datePatternFor(f.Kind))
	case FormatCustom:
		n, err := v.AsNumber()
		if err != nil {
			return v.String()
		}
		return renderDateTimePattern(n, f.CustomPattern)
	}
	return v.String()
}

func currencyRegion(tag language.Tag) language.Region {
	_, region, _ := tag.Raw()
	return region
}

// stripGrouping removes every ',' from a rendered number. Only the ','
// grouping separator is handled; other grouping runes are left in place.
func stripGrouping(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return s
}

var datePatterns = map[FormatKind]string{
	FormatDateDMY:  "dd/mm/yyyy",
	FormatDateDM:   "dd/mm",
	FormatDateMY:   "mm/yyyy",
	FormatTimeHMSZ: "h:mm:ss tt",
	FormatTimeHMS:  "h:mm:ss",
	FormatTimeHM:   "h:mm",
	FormatTimeHMZ:  "h:mm tt",
}

func datePatternFor(kind FormatKind) string {
	return datePatterns[kind]
}

// dateEpoch is the serial-number epoch: day 0 is 1899-12-30, matching
// the common spreadsheet convention (chosen freely per §4.4's "implementations
// choose the epoch" clause) so that DATE/TIME round-trip through
// YEAR/MONTH exactly.
var dateEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// DateToSerial converts a calendar date+time to its serial number: the
// integer part counts days since dateEpoch, the fraction is the day
// fraction (§4.4).
func DateToSerial(t time.Time) float64 {
	days := t.Sub(dateEpoch).Hours() / 24
	return days
}

// SerialToDate converts a serial number back to a time.Time in UTC.
func SerialToDate(serial float64) time.Time {
	wholeDays := int64(serial)
	fraction := serial - float64(wholeDays)
	t := dateEpoch.AddDate(0, 0, int(wholeDays))
	seconds := fraction * 24 * 3600
	return t.Add(time.Duration(seconds * float64(time.Second)))
}

// renderDateTimePattern formats a serial number against a small pattern
// language: dd, mm, mmm, yyyy, yy, h, hh, mm (minutes when following h),
// ss, tt (AM/PM marker), zz (ignored, kept for pattern compatibility
// with legacy "h:mm:ss tt zz" patterns).
func renderDateTimePattern(serial float64, pattern string) string {
	t := SerialToDate(serial)
	var sb strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		switch {
		case hasPrefixAt(runes, i, "yyyy"):
			fmt.Fprintf(&sb, "%04d", t.Year())
			i += 4
		case hasPrefixAt(runes, i, "yy"):
			fmt.Fprintf(&sb, "%02d", t.Year()%100)
			i += 2
		case hasPrefixAt(runes, i, "dd"):
			fmt.Fprintf(&sb, "%02d", t.Day())
			i += 2
		case hasPrefixAt(runes, i, "mmm"):
			sb.WriteString(t.Month().String()[:3])
			i += 3
		case hasPrefixAt(runes, i, "mm"):
			fmt.Fprintf(&sb, "%02d", minuteOrMonth(runes, i, t))
			i += 2
		case hasPrefixAt(runes, i, "hh"):
			fmt.Fprintf(&sb, "%02d", hour12(t))
			i += 2
		case hasPrefixAt(runes, i, "h"):
			fmt.Fprintf(&sb, "%d", hour12(t))
			i += 1
		case hasPrefixAt(runes, i, "ss"):
			fmt.Fprintf(&sb, "%02d", t.Second())
			i += 2
		case hasPrefixAt(runes, i, "tt"):
			sb.WriteString(amPm(t))
			i += 2
		case hasPrefixAt(runes, i, "zz"):
			i += 2 // timezone marker: ignored, UTC-only serials
		default:
			sb.WriteRune(runes[i])
			i++
		}
	}
	return sb.String()
}

// minuteOrMonth disambiguates "mm" between minutes (after an "h" token
// earlier in the pattern) and month (a bare date pattern). A simple
// heuristic: if the rune immediately preceding is ':' it's minutes.
func minuteOrMonth(runes []rune, i int, t time.Time) int {
	if i > 0 && runes[i-1] == ':' {
		return t.Minute()
	}
	return int(t.Month())
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return h
}

func amPm(t time.Time) string {
	if t.Hour() < 12 {
		return "AM"
	}
	return "PM"
}

func hasPrefixAt(runes []rune, i int, prefix string) bool {
	p := []rune(prefix)
	if i+len(p) > len(runes) {
		return false
	}
	for j, r := range p {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
