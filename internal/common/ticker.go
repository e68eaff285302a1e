// Package common provides shared utilities across the application.
package common

import (
	"strings"
	"unicode"
)

// B3 ticker suffix conventions. The numeric suffix identifies the share
// class: 3 = ordinary, 4 = preferred, 11 = unit or FII.
const (
	SuffixUnit = "11"
)

// NormalizeTicker uppercases and trims a B3 ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// IsValidTicker reports whether a string looks like a B3 symbol: four
// letters followed by one or two digits (PETR4, VALE3, HGLG11).
func IsValidTicker(ticker string) bool {
	t := NormalizeTicker(ticker)
	if len(t) < 5 || len(t) > 6 {
		return false
	}
	for _, r := range t[:4] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	for _, r := range t[4:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// HasUnitSuffix reports whether the ticker carries the "11" suffix shared by
// FIIs and units. Distinguishing between the two requires inspecting the
// source page for fund-specific fields.
func HasUnitSuffix(ticker string) bool {
	return strings.HasSuffix(NormalizeTicker(ticker), SuffixUnit)
}

// BaseSymbol strips the numeric class suffix: PETR4 -> PETR.
func BaseSymbol(ticker string) string {
	t := NormalizeTicker(ticker)
	return strings.TrimRight(t, "0123456789")
}
