package rewe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateZip(t *testing.T) {
	tests := []struct {
		zip   string
		valid bool
	}{
		{"63773", true},
		{"01067", true},
		{"6377", false},
		{"637733", false},
		{"6377a", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			err := ValidateZip(tt.zip)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidZip)
			}
		})
	}
}

func TestValidateMarketID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"562286", true},
		{"1840205", true},
		{"56228", false},
		{"18402051", false},
		{"56228x", false},
		{"-56228", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateMarketID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMarketID)
			}
		})
	}
}
