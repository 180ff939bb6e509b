// Package money holds the fixed-point helpers used for every amount in the
// system. Amounts are shopspring decimals kept at a scale of two places.
package money

import "github.com/shopspring/decimal"

// Scale is the number of decimal places carried by stored amounts.
const Scale int32 = 2

// Epsilon is the smallest amount treated as outstanding (one cent).
var Epsilon = decimal.New(1, -Scale)

// Round rounds to Scale places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// HasValidScale reports whether d carries no more than Scale decimal places.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// IsNegligible reports whether |d| is below Epsilon.
func IsNegligible(d decimal.Decimal) bool {
	return d.Abs().LessThan(Epsilon)
}

// Sum adds all values. An empty call returns zero.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
