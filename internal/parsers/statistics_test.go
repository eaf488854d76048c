package parsers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRatioToPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"ratio float", 0.54, 54, true},
		{"ratio string", "0.54", 54, true},
		{"percent int", 54, 54, true},
		{"percent string", "54", 54, true},
		{"percent suffix", " 54% ", 54, true},
		{"zero", 0, 0, true},
		{"one is a ratio", 1, 100, true},
		{"hundred", 100.0, 100, true},
		{"integer two", 2.0, 2, true},
		{"ambiguous decimal", 1.54, 0, false},
		{"ambiguous decimal string", "1.5", 0, false},
		{"above hundred", 101, 0, false},
		{"negative", -1, 0, false},
		{"nan", math.NaN(), 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"null token", "N/A", 0, false},
		{"dash", "-", 0, false},
		{"empty", "  ", 0, false},
		{"garbage", "abc", 0, false},
		{"unsupported type", []int{1}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRatioToPercent(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoneyToInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"int", 52000, 52000, true},
		{"float", 52000.0, 52000, true},
		{"formatted", "$52,000", 52000, true},
		{"decimals", "$1,234.56", 1235, true},
		{"negative int", -5, 0, false},
		{"negative float", -5.5, 0, false},
		{"negative string", "-$100", 0, false},
		{"null token", "none", 0, false},
		{"no digits", "$", 0, false},
		{"two dots", "1.2.3", 0, false},
		{"bool", false, 0, false},
		{"nil", nil, 0, false},
		{"huge digit string", "99999999999999999999999", 0, false},
		{"huge formatted", "$99,999,999,999,999,999,999", 0, false},
		{"huge float", 1e30, 0, false},
		{"float at int limit", math.Exp2(63), 0, false},
		{"float32 huge", float32(1e30), 0, false},
		{"exponent string", "$1e40", 0, false},
		{"exponent with sign", "5E+3", 0, false},
		{"plain words with e", "$52,000 per year", 52000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseMoneyToInt(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
