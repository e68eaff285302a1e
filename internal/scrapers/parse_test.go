package scrapers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberBR(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"1.234,56", 1234.56},
		{"1,5%", 1.5},
		{"R$ 2.500,00", 2500.0},
		{"1,2Bi", 1_200_000_000.0},
		{"3,4Tri", 3_400_000_000_000.0},
		{"150Mi", 150_000_000.0},
		{"2,5M", 2_500_000.0},
		{"10K", 10_000.0},
		{"0,85", 0.85},
		{"-12,3%", -12.3},
		{"R$ 0,52", 0.52},
		{"1.234.567", 1234567.0},
	}

	for _, tt := range tests {
		value, ok := ParseNumberBR(tt.input)
		require.True(t, ok, "input %q should parse", tt.input)
		assert.InDelta(t, tt.expected, value, 1e-9, "input %q", tt.input)
	}
}

func TestParseNumberBRNullMarkers(t *testing.T) {
	for _, input := range []string{"-", "", "  ", "N/A", "n/a", "--"} {
		_, ok := ParseNumberBR(input)
		assert.False(t, ok, "input %q should be null", input)
	}
	assert.Nil(t, ParseNumberBRPtr("-"))
}

func TestParseNumberBRGarbage(t *testing.T) {
	for _, input := range []string{"abc", "12,3,4", "R$"} {
		_, ok := ParseNumberBR(input)
		assert.False(t, ok, "input %q should not parse", input)
	}
}

func TestParseDateBR(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15/03/2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2026-03-15T10:30:00", time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"2026-03-15T10:30:00.123456", time.Date(2026, 3, 15, 10, 30, 0, 123456000, time.UTC)},
	}

	for _, tt := range tests {
		parsed, ok := ParseDateBR(tt.input)
		require.True(t, ok, "input %q should parse", tt.input)
		assert.True(t, tt.expected.Equal(parsed), "input %q parsed to %v", tt.input, parsed)
	}

	_, ok := ParseDateBR("not a date")
	assert.False(t, ok)
	_, ok = ParseDateBR("-")
	assert.False(t, ok)
}
