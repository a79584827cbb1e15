// Package structure detects BOS/cBOS break-of-structure events (C2).
//
// Grounded on original_source/concepts/structure.py's detect_structure. The
// "current trend" that decides BOS vs cBOS is computed as a deterministic
// fold over the bar loop local to Detect, never stored as package-level
// mutable state, per SPEC_FULL.md Open Question decision #3.
package structure

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// BreakMode selects whether a break is confirmed by close (strict) or by
// wick (high/low).
type BreakMode string

const (
	BreakModeClose BreakMode = "close"
	BreakModeWick  BreakMode = "wick"
)

// Detect folds over candles and confirmed swings to produce structure
// events. A swing becomes usable as a breakable level at its
// ConfirmedIndex, matching the source's "confirmed_idx = orig_idx -
// swing_length" lookup. Once a swing level breaks, it is consumed and
// cannot break again. The running trend starts UNDEFINED; a break while
// UNDEFINED or with-trend is cBOS, a break against trend is BOS.
func Detect(candles []types.Candle, swings []types.Swing, mode BreakMode) []types.StructureEvent {
	if len(candles) == 0 {
		return nil
	}

	// Index confirmed swings by the bar at which they become usable.
	bySwingConfirm := make(map[int][]types.Swing)
	for _, s := range swings {
		bySwingConfirm[s.ConfirmedIndex] = append(bySwingConfirm[s.ConfirmedIndex], s)
	}

	var events []types.StructureEvent
	trend := types.BiasUndefined

	var lastSwingHigh *types.Swing
	var lastSwingLow *types.Swing

	for i, c := range candles {
		for _, s := range bySwingConfirm[i] {
			s := s
			if s.Direction == types.Bullish {
				lastSwingHigh = &s
			} else {
				lastSwingLow = &s
			}
		}

		var breakUp, breakDown = c.Close, c.Close
		if mode == BreakModeWick {
			breakUp, breakDown = c.High, c.Low
		}

		if lastSwingHigh != nil && breakUp.GreaterThan(lastSwingHigh.Price) {
			kind := types.BOS
			if trend == types.BiasBullish || trend == types.BiasUndefined {
				kind = types.CBOS
			}
			events = append(events, types.StructureEvent{
				Kind:       kind,
				Direction:  types.Bullish,
				SwingIndex: lastSwingHigh.Index,
				Level:      lastSwingHigh.Price,
				BreakIndex: i,
				BreakTime:  c.Time,
			})
			trend = types.BiasBullish
			lastSwingHigh = nil
		}

		if lastSwingLow != nil && breakDown.LessThan(lastSwingLow.Price) {
			kind := types.BOS
			if trend == types.BiasBearish || trend == types.BiasUndefined {
				kind = types.CBOS
			}
			events = append(events, types.StructureEvent{
				Kind:       kind,
				Direction:  types.Bearish,
				SwingIndex: lastSwingLow.Index,
				Level:      lastSwingLow.Price,
				BreakIndex: i,
				BreakTime:  c.Time,
			})
			trend = types.BiasBearish
			lastSwingLow = nil
		}
	}
	return events
}
