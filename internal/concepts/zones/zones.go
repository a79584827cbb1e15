// Package zones computes premium/discount range classification and
// consequent encroachment levels (C2 supplement).
//
// Grounded on original_source/concepts/zones.py.
package zones

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvertedRange is returned when swingHigh is not strictly above swingLow.
var ErrInvertedRange = errors.New("zones: swing high must be above swing low")

// PriceZone classifies where a price sits within a swing range.
type PriceZone string

const (
	ZonePremium     PriceZone = "premium"
	ZoneDiscount    PriceZone = "discount"
	ZoneEquilibrium PriceZone = "equilibrium"
)

var (
	pct45 = decimal.NewFromInt(45)
	pct55 = decimal.NewFromInt(55)
	pct25 = decimal.NewFromFloat(0.25)
	pct75 = decimal.NewFromFloat(0.75)
	two   = decimal.NewFromInt(2)
	hund  = decimal.NewFromInt(100)
)

// Range holds the boundaries and key reaction levels of a swing range.
type Range struct {
	SwingHigh    decimal.Decimal
	SwingLow     decimal.Decimal
	Equilibrium  decimal.Decimal
	PremiumLow   decimal.Decimal
	PremiumHigh  decimal.Decimal
	DiscountLow  decimal.Decimal
	DiscountHigh decimal.Decimal
	Quarter25    decimal.Decimal
	Quarter75    decimal.Decimal
}

// PremiumDiscountZones splits the range between swingHigh and swingLow into
// its premium half (above the 50% equilibrium), discount half (below it),
// and quarter levels.
func PremiumDiscountZones(swingHigh, swingLow decimal.Decimal) (Range, error) {
	if swingHigh.LessThanOrEqual(swingLow) {
		return Range{}, ErrInvertedRange
	}
	rangeSize := swingHigh.Sub(swingLow)
	eq := swingHigh.Add(swingLow).Div(two)
	return Range{
		SwingHigh: swingHigh, SwingLow: swingLow, Equilibrium: eq,
		PremiumLow: eq, PremiumHigh: swingHigh,
		DiscountLow: swingLow, DiscountHigh: eq,
		Quarter25: swingLow.Add(pct25.Mul(rangeSize)),
		Quarter75: swingLow.Add(pct75.Mul(rangeSize)),
	}, nil
}

// ClassifyPriceZone reports whether price sits in the premium (>55%),
// discount (<45%), or equilibrium band of the range. An inverted range
// classifies as equilibrium rather than erroring, matching the source's
// fallback behavior for malformed ranges.
func ClassifyPriceZone(price, swingHigh, swingLow decimal.Decimal) PriceZone {
	if swingHigh.LessThanOrEqual(swingLow) {
		return ZoneEquilibrium
	}
	pct := ZonePercentage(price, swingHigh, swingLow)
	switch {
	case pct.GreaterThan(pct55):
		return ZonePremium
	case pct.LessThan(pct45):
		return ZoneDiscount
	default:
		return ZoneEquilibrium
	}
}

// ConsequentEncroachment returns the 50% midpoint of any zone (FVG, order
// block, or swing range) — the key reaction level within it.
func ConsequentEncroachment(top, bottom decimal.Decimal) decimal.Decimal {
	return top.Add(bottom).Div(two)
}

// ZonePercentage returns where price sits within the range, as a 0-100
// percentage. An inverted or zero-width range reports 50.
func ZonePercentage(price, swingHigh, swingLow decimal.Decimal) decimal.Decimal {
	if swingHigh.LessThanOrEqual(swingLow) {
		return decimal.NewFromInt(50)
	}
	return price.Sub(swingLow).Div(swingHigh.Sub(swingLow)).Mul(hund)
}
