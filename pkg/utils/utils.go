// Package utils provides the small decimal-arithmetic helpers shared
// across the money-math packages (portfolio, report), trimmed
// to the subset an event-driven single-instrument backtest actually has
// use for.
package utils

import (
	"github.com/shopspring/decimal"
)

// RoundToDecimalPlaces rounds d to the given number of decimal places.
func RoundToDecimalPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal restricts value to the closed interval [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// FormatMoney formats a decimal as a currency-prefixed string for the
// terminal summary table.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch currency {
	case "USD", "USDT", "USDC", "":
		return "$" + d.StringFixed(2)
	default:
		return d.StringFixed(2) + " " + currency
	}
}
