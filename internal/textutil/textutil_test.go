package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "Milch", "Milch"},
		{"Newline", "Bio\nMilch", "Bio Milch"},
		{"Line separator", "Bio\u2028Milch", "Bio Milch"},
		{"Surrounding blanks", "  \n Joghurt \n", "Joghurt"},
		{"Collapsed blanks", "1 kg  =\t\t3,98 €", "1 kg = 3,98 €"},
		{"Carriage return", "A\r\nB", "A B"},
		{"Decomposed umlaut", "Ka\u0308se", "K\u00e4se"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestStripParens(t *testing.T) {
	assert.Equal(t, "1 kg = 2,99 €", StripParens("(1 kg = 2,99 €)"))
	assert.Equal(t, "je St.", StripParens(" je St. "))
	assert.Equal(t, "", StripParens("()"))
}

func TestIsBasePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"(1 kg = 3,98 €)", true},
		{"100-g-Preis 0,89", true},
		{"je St.", true},
		{"1-l-Preis 1,29", true},
		{"Herkunft: Spanien", false},
		{"Klasse I", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBasePrice(tt.input))
		})
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"Float", 1.99, "1,99"},
		{"Float one decimal", 1.5, "1,50"},
		{"Int", 2, "2,00"},
		{"String dot", "0.79", "0,79"},
		{"String comma", " 0,79 € ", "0,79 €"},
		{"Nil", nil, ""},
		{"Unsupported", []int{1}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPrice(tt.input))
		})
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "1,99", FormatCents(199))
	assert.Equal(t, "0,05", FormatCents(5))
	assert.Equal(t, "10,00", FormatCents(1000))
}

func TestIsDigits(t *testing.T) {
	assert.True(t, IsDigits("63773"))
	assert.False(t, IsDigits("6377a"))
	assert.False(t, IsDigits(""))
	assert.False(t, IsDigits("-1234"))
}
