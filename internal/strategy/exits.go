package strategy

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// CheckTargetHit reports whether the bar's range reached the target: long
// needs high >= target, short needs low <= target.
func CheckTargetHit(high, low, target decimal.Decimal, direction types.Direction) bool {
	if direction == types.Bullish {
		return high.GreaterThanOrEqual(target)
	}
	return low.LessThanOrEqual(target)
}

// CheckStopLossHit reports whether the bar's range reached the stop: long
// needs low <= stop, short needs high >= stop.
func CheckStopLossHit(high, low, stop decimal.Decimal, direction types.Direction) bool {
	if direction == types.Bullish {
		return low.LessThanOrEqual(stop)
	}
	return high.GreaterThanOrEqual(stop)
}

// CheckStructuralBreakeven reports the breakeven level implied by a
// structure break occurring on this exact bar in the trade's direction, or
// a zero decimal and false when none applies.
func CheckStructuralBreakeven(state types.POIState, structureEvents []types.StructureEvent, barIndex int, commissionPct decimal.Decimal, cfg types.BreakevenConfig) (decimal.Decimal, bool) {
	if !cfg.StructuralBU || state.EntryPrice.IsZero() {
		return decimal.Zero, false
	}
	direction := state.POI.Direction
	for _, ev := range structureEvents {
		if ev.BreakIndex == barIndex && ev.Direction == direction {
			return CalculateBreakevenLevel(state.EntryPrice, direction, commissionPct), true
		}
	}
	return decimal.Zero, false
}

// CheckFTABreakeven reports the breakeven level implied by price having
// moved past the FTA's midpoint in trade direction, or false when no FTA
// applies or the config disables it.
func CheckFTABreakeven(state types.POIState, fta *types.POI, currentPrice, commissionPct decimal.Decimal, cfg types.BreakevenConfig) (decimal.Decimal, bool) {
	if !cfg.FTABU || state.EntryPrice.IsZero() || fta == nil {
		return decimal.Zero, false
	}
	direction := state.POI.Direction
	mid := fta.Midpoint()
	if direction == types.Bullish {
		if currentPrice.GreaterThanOrEqual(mid) {
			return CalculateBreakevenLevel(state.EntryPrice, direction, commissionPct), true
		}
		return decimal.Zero, false
	}
	if currentPrice.LessThanOrEqual(mid) {
		return CalculateBreakevenLevel(state.EntryPrice, direction, commissionPct), true
	}
	return decimal.Zero, false
}

// EvaluateExit runs the exit decision tree in priority order for one
// POSITIONED or MANAGING state: stop-loss, then target, then structural
// breakeven, then FTA breakeven. Stop-loss is always checked before target
// so a bar breaching both boundaries records a stop-loss exit.
func EvaluateExit(state types.POIState, candle types.Candle, barIndex int, ts time.Time, fta *types.POI, structureEvents []types.StructureEvent, commissionPct decimal.Decimal, cfg types.StrategyConfig) *types.Signal {
	if state.Phase != types.PhasePositioned && state.Phase != types.PhaseManaging {
		return nil
	}
	if state.EntryPrice.IsZero() || state.StopLoss.IsZero() || state.Target.IsZero() {
		return nil
	}

	direction := state.POI.Direction

	if CheckStopLossHit(candle.High, candle.Low, state.StopLoss, direction) {
		return &types.Signal{
			Kind: types.SignalExit, POIID: state.POIID, Direction: direction,
			Time: ts, BarIndex: barIndex, Price: state.StopLoss,
			Reason:   string(types.ReasonStopLossHit),
			Metadata: map[string]any{"barIndex": barIndex, "exitReason": types.ReasonStopLossHit},
		}
	}

	if CheckTargetHit(candle.High, candle.Low, state.Target, direction) {
		return &types.Signal{
			Kind: types.SignalExit, POIID: state.POIID, Direction: direction,
			Time: ts, BarIndex: barIndex, Price: state.Target,
			Reason:   string(types.ReasonTargetHit),
			Metadata: map[string]any{"barIndex": barIndex, "exitReason": types.ReasonTargetHit},
		}
	}

	if state.BreakevenLevel.IsZero() {
		if be, ok := CheckStructuralBreakeven(state, structureEvents, barIndex, commissionPct, cfg.Breakeven); ok {
			return &types.Signal{
				Kind: types.SignalMoveToBE, POIID: state.POIID, Direction: direction,
				Time: ts, BarIndex: barIndex, Price: be,
				Reason:   "structural breakeven",
				Metadata: map[string]any{"barIndex": barIndex, "beLevel": be},
			}
		}

		if be, ok := CheckFTABreakeven(state, fta, candle.Close, commissionPct, cfg.Breakeven); ok {
			return &types.Signal{
				Kind: types.SignalMoveToBE, POIID: state.POIID, Direction: direction,
				Time: ts, BarIndex: barIndex, Price: be,
				Reason:   "FTA breakeven",
				Metadata: map[string]any{"barIndex": barIndex, "beLevel": be},
			}
		}
	}

	return nil
}
