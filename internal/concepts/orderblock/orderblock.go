// Package orderblock detects order blocks (the last opposing candle before a
// structure break) and tracks their mitigation (C2 supplement).
//
// Grounded on original_source/concepts/orderblocks.py.
package orderblock

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

const maxBackScan = 50

// Detect finds, for each structure event, the last opposing candle in the
// 50 bars preceding the event's broken swing index: a bearish candle for a
// bullish break (demand zone), a bullish candle for a bearish break (supply
// zone).
func Detect(candles []types.Candle, events []types.StructureEvent) []types.OrderBlock {
	var out []types.OrderBlock
	for _, ev := range events {
		start := ev.SwingIndex
		if start < 0 || start >= len(candles) {
			continue
		}
		floor := start - maxBackScan
		if floor < 0 {
			floor = 0
		}
		for j := start; j >= floor; j-- {
			c := candles[j]
			if ev.Direction == types.Bullish && c.Close.LessThan(c.Open) {
				out = append(out, types.OrderBlock{
					Direction: types.Bullish, Top: c.High, Bottom: c.Low,
					Index: j, CreatedAt: ev.BreakTime, Status: types.OBActive,
				})
				break
			}
			if ev.Direction == types.Bearish && c.Close.GreaterThan(c.Open) {
				out = append(out, types.OrderBlock{
					Direction: types.Bearish, Top: c.High, Bottom: c.Low,
					Index: j, CreatedAt: ev.BreakTime, Status: types.OBActive,
				})
				break
			}
		}
	}
	return out
}

// UpdateStatus applies one bar of mitigation-tracking to a snapshot of order
// blocks, returning a new slice (input untouched). closeMitigation selects
// whether BROKEN requires a close through the zone (strict) or merely a
// wick (loose). A block already MITIGATED or BROKEN never transitions again.
func UpdateStatus(obs []types.OrderBlock, c types.Candle, closeMitigation bool) []types.OrderBlock {
	out := make([]types.OrderBlock, len(obs))
	copy(out, obs)
	for i := range out {
		if out[i].Status == types.OBMitigated || out[i].Status == types.OBBroken {
			continue
		}
		top, bottom := out[i].Top, out[i].Bottom
		if out[i].Direction == types.Bullish {
			switch {
			case closeMitigation && c.Close.LessThan(bottom):
				out[i].Status = types.OBBroken
			case !closeMitigation && c.Low.LessThan(bottom):
				out[i].Status = types.OBBroken
			}
		} else {
			switch {
			case closeMitigation && c.Close.GreaterThan(top):
				out[i].Status = types.OBBroken
			case !closeMitigation && c.High.GreaterThan(top):
				out[i].Status = types.OBBroken
			}
		}
	}
	return out
}
