package rewe

import (
	"errors"
	"fmt"

	"github.com/maltedev/rewe-discounts/internal/textutil"
)

var (
	ErrInvalidZip      = errors.New("please provide a 5 digit postal code")
	ErrInvalidMarketID = errors.New("please provide a 6 or 7 digit market ID")
)

func ValidateZip(zip string) error {
	if len(zip) != 5 || !textutil.IsDigits(zip) {
		return fmt.Errorf("unrecognized input %q: %w", zip, ErrInvalidZip)
	}
	return nil
}

func ValidateMarketID(id string) error {
	if len(id) < 6 || len(id) > 7 || !textutil.IsDigits(id) {
		return fmt.Errorf("unrecognized input %q: %w", id, ErrInvalidMarketID)
	}
	return nil
}
