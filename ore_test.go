package ore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountToUI(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		decimals uint8
		expected float64
	}{
		{name: "Whole and fraction", amount: 2_500_000_000, decimals: 9, expected: 2.5},
		{name: "Zero", amount: 0, decimals: 9, expected: 0},
		{name: "Sub-unit", amount: 1, decimals: 9, expected: 0.000000001},
		{name: "Token decimals constant", amount: 1_000_000_000, decimals: TokenDecimals, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AmountToUI(tt.amount, tt.decimals))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "2.5", FormatAmount(2_500_000_000, 9))
	assert.Equal(t, "0", FormatAmount(0, 9))
}

func TestLamportsToSol(t *testing.T) {
	assert.Equal(t, 1.5, LamportsToSol(1_500_000_000))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		decimals    uint8
		expected    uint64
		shouldError bool
	}{
		{name: "Whole", input: "2", decimals: 9, expected: 2_000_000_000},
		{name: "Fraction", input: "2.5", decimals: 9, expected: 2_500_000_000},
		{name: "Leading dot", input: ".5", decimals: 9, expected: 500_000_000},
		{name: "Full precision", input: "0.000000001", decimals: 9, expected: 1},
		{name: "Too many decimals", input: "0.0000000001", decimals: 9, shouldError: true},
		{name: "Negative", input: "-1", decimals: 9, shouldError: true},
		{name: "Empty", input: "", decimals: 9, shouldError: true},
		{name: "Garbage", input: "abc", decimals: 9, shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.shouldError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
