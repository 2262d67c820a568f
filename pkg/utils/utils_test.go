package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 5, ""},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		result := TruncateString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0xf39F...2266", ShortAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	assert.Equal(t, "0x1234", ShortAddress("0x1234"))
}

func TestAddCommas(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"-1234", "-1,234"},
		{"-123", "-123"},
		{"", ""},
	}

	for _, tt := range tests {
		result := AddCommas(tt.input)
		if result != tt.expected {
			t.Errorf("AddCommas(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1,234.57", FormatFloat(1234.5678, 2))
	assert.Equal(t, "0.00", FormatFloat(0, 2))
}

func TestFormatWei(t *testing.T) {
	oneAndHalf, _ := new(big.Int).SetString("1500000000000000000", 10)
	large, _ := new(big.Int).SetString("1234567000000000000000", 10)

	tests := []struct {
		wei      *big.Int
		decimals int
		expected string
	}{
		{oneAndHalf, 4, "1.5000"},
		{large, 2, "1,234.57"},
		{big.NewInt(1), 18, "0.000000000000000001"},
		{nil, 2, "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatWei(tt.wei, tt.decimals))
	}
	assert.Equal(t, 1.5, WeiToFloat(oneAndHalf))
}

func TestFormatGwei(t *testing.T) {
	assert.Equal(t, "20.00 Gwei", FormatGwei(big.NewInt(20000000000)))
	assert.Equal(t, "-", FormatGwei(nil))
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1,250.50", FormatUnits(big.NewInt(1250500000), 6, 2))
	assert.Equal(t, "0.0000", FormatUnits(nil, 18, 4))
}
