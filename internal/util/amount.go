package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNoDigits = errors.New("no digits in amount")

	nonNumeric = regexp.MustCompile(`[^0-9.]`)
)

// USDMarker tags an amount that is already in US dollars.
const USDMarker = "$"

func HasUSDMarker(input string) bool {
	return strings.Contains(input, USDMarker)
}

// StripNonNumeric keeps only ASCII digits and the decimal point. Currency
// symbols, thousands separators, signs and stray text are all discarded.
func StripNonNumeric(input string) string {
	return nonNumeric.ReplaceAllString(input, "")
}

// ParseAmount strips input down to digits and '.' and parses the remainder.
func ParseAmount(input string) (decimal.Decimal, error) {
	compact := StripNonNumeric(input)
	if strings.Trim(compact, ".") == "" {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", input, ErrNoDigits)
	}
	d, err := decimal.NewFromString(compact)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", input, err)
	}
	return d, nil
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
