package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a string is not a decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// Amounts are plain decimals of at most 30 integer and 18 fraction
// digits. Exponents are refused.
var amountPattern = regexp.MustCompile(`^-?[0-9]{1,30}(\.[0-9]{1,18})?$`)

// ParseAmount parses a decimal string, accepting thousands separators
// ("50,000") and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !amountPattern.MatchString(clean) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmount strips separators and returns the canonical string form
// of a decimal, keeping trailing zeros the caller wrote ("100.50" stays).
func NormalizeAmount(s string) (string, error) {
	if _, err := ParseAmount(s); err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ""), nil
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
