// Package money provides currency-safe decimal helpers shared by the
// discount, shipping and payment code. All monetary values in the system
// are shopspring decimals quantized to cents at the boundaries defined here.
package money

import (
	"github.com/shopspring/decimal"
)

// Cent is the smallest representable increment.
var Cent = decimal.New(1, -2)

// Zero is the canonical zero amount.
var Zero = decimal.New(0, -2)

// FloorCents quantizes d to two decimal places rounding toward negative
// infinity. Discount splitting floors so that allocation never hands out
// more than the nominal amount; leftover cents are redistributed explicitly.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// RoundCents quantizes d to two decimal places using banker's rounding,
// matching the quantization the store applies to computed prices.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// RoundCentsMap quantizes every value of m in place.
func RoundCentsMap(m map[string]decimal.Decimal) {
	for k, v := range m {
		m[k] = RoundCents(v)
	}
}

// Sum adds the given amounts, returning Zero for an empty list.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MustParse converts a literal like "19.99" to a decimal, panicking on bad
// input. Intended for constants and tests only.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Format renders an amount with two decimal places for messages shown to
// customers.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
