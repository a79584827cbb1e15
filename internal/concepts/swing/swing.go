// Package swing detects confirmed swing highs/lows (fractals) over an OHLC
// series (C2).
//
// Grounded on original_source/concepts/fractals.py's detect_swings /
// update_swing_status, reimplemented as a forward bar-scan rather than a
// vectorized rolling-window comparison, per spec.md §9's design note on
// replacing dataframe masking with ordered record arrays and range scans.
package swing

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Detect finds confirmed swing highs/lows in candles using a window of
// swingLength bars on each side. A swing high at index i requires that no
// bar in the window [i-swingLength, i+swingLength] has a higher high (equal
// highs further out are allowed) and that high[i] is strictly greater than
// both immediate neighbors; swing low mirrors this on
// lows. A swing is only knowable swingLength bars after it occurs
// (ConfirmedIndex = i + swingLength), matching the source's comment that
// detection trails by swing_length bars to avoid look-ahead.
//
// When both a swing high and swing low fire at the same index (a candle that
// is simultaneously the window's extreme high and extreme low), the swing
// high wins — the source's tie-break compares each side's distance from its
// own rolling extreme, which is always zero at a true tie, so it always
// prefers the high; this is preserved verbatim rather than invented anew.
func Detect(candles []types.Candle, swingLength int) []types.Swing {
	n := len(candles)
	if swingLength < 1 || n == 0 {
		return nil
	}

	var swings []types.Swing
	for i := swingLength; i < n-swingLength; i++ {
		isHigh := isWindowMax(candles, i, swingLength)
		isLow := isWindowMin(candles, i, swingLength)

		if isHigh && isLow {
			isLow = false // tie-break: prefer swing high, matches source quirk
		}

		switch {
		case isHigh:
			swings = append(swings, types.Swing{
				Index:          i,
				ConfirmedIndex: i + swingLength,
				Direction:      types.Bullish,
				Price:          candles[i].High,
				Status:         types.SwingActive,
			})
		case isLow:
			swings = append(swings, types.Swing{
				Index:          i,
				ConfirmedIndex: i + swingLength,
				Direction:      types.Bearish,
				Price:          candles[i].Low,
				Status:         types.SwingActive,
			})
		}
	}
	return swings
}

func isWindowMax(candles []types.Candle, i, length int) bool {
	h := candles[i].High
	if h.LessThanOrEqual(candles[i-1].High) || h.LessThanOrEqual(candles[i+1].High) {
		return false
	}
	for j := i - length; j <= i+length; j++ {
		if j == i {
			continue
		}
		if candles[j].High.GreaterThan(h) {
			return false
		}
	}
	return true
}

func isWindowMin(candles []types.Candle, i, length int) bool {
	l := candles[i].Low
	if l.GreaterThanOrEqual(candles[i-1].Low) || l.GreaterThanOrEqual(candles[i+1].Low) {
		return false
	}
	for j := i - length; j <= i+length; j++ {
		if j == i {
			continue
		}
		if candles[j].Low.LessThan(l) {
			return false
		}
	}
	return true
}

// UpdateStatus marks active swings as SWEPT when the current bar's high/low
// trades through the swing level without yet being classified BROKEN (BROKEN
// is assigned by the structure package once a close confirms the break).
func UpdateStatus(swings []types.Swing, currentHigh, currentLow decimal.Decimal) []types.Swing {
	out := make([]types.Swing, len(swings))
	copy(out, swings)
	for i := range out {
		if out[i].Status != types.SwingActive {
			continue
		}
		switch out[i].Direction {
		case types.Bullish:
			if currentHigh.GreaterThan(out[i].Price) {
				out[i].Status = types.SwingSwept
			}
		case types.Bearish:
			if currentLow.LessThan(out[i].Price) {
				out[i].Status = types.SwingSwept
			}
		}
	}
	return out
}
