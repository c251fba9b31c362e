package rateio

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a numeric value entered at the boundary.
//
// Brazilian forms commonly use a comma as the decimal separator, so both
// "12,34" and "12.34" are accepted. Malformed input is coerced to zero so
// that a bad field never propagates a parse failure into the arithmetic.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	s = strings.ReplaceAll(s, ",", ".")
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	return value
}

// round2 quantizes a money amount to cents, half away from zero.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// round4 quantizes a physical quantity or unit price to four places.
func round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// safeDiv divides a by b, a zero denominator yields zero instead of an
// error.
func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}

	return a.Div(b)
}
