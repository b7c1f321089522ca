package textutil

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// basePriceMarkers identify the "price per unit" entry inside an offer description.
var basePriceMarkers = []string{
	"g =", "100 g", "l =", "100 ml", "100-g", "100-ml", "1-kg", "je St.", "1 kg", "1-l", "-St.",
}

// Clean replaces line breaks, line/paragraph separators and other control
// characters with blanks, collapses repeated blanks and trims the result.
func Clean(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	lastBlank := true
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !lastBlank {
				b.WriteByte(' ')
				lastBlank = true
			}
			continue
		}
		b.WriteRune(r)
		lastBlank = false
	}

	return strings.TrimRight(b.String(), " ")
}

// StripParens removes one pair of surrounding parentheses, e.g. "(1 kg = 2,99 €)".
func StripParens(s string) string {
	s = Clean(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	return strings.TrimSpace(s)
}

// IsBasePrice reports whether s looks like a normalized unit price.
func IsBasePrice(s string) bool {
	for _, marker := range basePriceMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// FormatPrice renders a price with a decimal comma. Numeric values get two
// decimals; strings are cleaned and keep their precision.
func FormatPrice(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(Clean(p), ".", ",")
	case float64:
		return formatFloat(p)
	case float32:
		return formatFloat(float64(p))
	case int:
		return formatFloat(float64(p))
	case int64:
		return formatFloat(float64(p))
	default:
		return ""
	}
}

// FormatCents renders an amount given in cents, e.g. 199 -> "1,99".
func FormatCents(cents int64) string {
	return formatFloat(float64(cents) / 100)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strings.Replace(strconv.FormatFloat(f, 'f', 2, 64), ".", ",", 1)
}

// IsDigits reports whether s is non-empty and consists of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
