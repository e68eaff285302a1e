// -----------------------------------------------------------------------
// Locale Parsing - Brazilian-format numbers, percentages and dates
// -----------------------------------------------------------------------

package scrapers

import (
	"strconv"
	"strings"
	"time"
)

// multipliers maps suffixes found on Brazilian financial sites to scale
// factors. Longer suffixes must be checked before their prefixes.
var multiplierSuffixes = []struct {
	suffix string
	factor float64
}{
	{"tri", 1e12},
	{"t", 1e12},
	{"bi", 1e9},
	{"b", 1e9},
	{"mi", 1e6},
	{"m", 1e6},
	{"k", 1e3},
}

// IsNullValue reports whether a cell stands for "no data". Sites render
// absent values as a dash, empty string or N/A.
func IsNullValue(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || s == "-" || s == "--" || strings.EqualFold(s, "n/a") || strings.EqualFold(s, "nd")
}

// ParseNumberBR parses a Brazilian-locale numeric string: `.` thousands
// separator, `,` decimal separator, optional `R$` prefix, `%` suffix and
// K/M/Mi/B/Bi/T/Tri multiplier suffixes. Returns false for null markers and
// unparseable input. A percent value is returned as its face number
// ("1,5%" parses to 1.5).
func ParseNumberBR(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if IsNullValue(s) {
		return 0, false
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "US$", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	factor := 1.0
	lower := strings.ToLower(s)
	for _, m := range multiplierSuffixes {
		if strings.HasSuffix(lower, m.suffix) {
			factor = m.factor
			s = s[:len(s)-len(m.suffix)]
			s = strings.TrimSpace(s)
			break
		}
	}

	// 1.234,56 -> 1234.56
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value * factor, true
}

// ParseNumberBRPtr is ParseNumberBR returning nil for null or unparseable
// input, for callers building free-form payloads.
func ParseNumberBRPtr(raw string) *float64 {
	value, ok := ParseNumberBR(raw)
	if !ok {
		return nil
	}
	return &value
}

// dateLayouts are the accepted input formats, tried in order.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ParseDateBR parses the date formats found across the sources:
// ISO dates with or without time, and the Brazilian DD/MM/YYYY.
func ParseDateBR(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if IsNullValue(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
