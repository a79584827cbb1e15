package strategy

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/confirm"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

var rrTargetMultiple = decimal.NewFromInt(3)

// roughTargetMinRR is the reward-to-risk floor entries must clear against
// the rough 3x-distance target used before the exit layer picks a real one.
const roughTargetMinRR = 2.0

var activeFVGStatusesForRTO = map[types.FVGStatus]bool{
	types.FVGFresh:           true,
	types.FVGTested:          true,
	types.FVGPartiallyFilled: true,
}

// EvaluateEntry runs the full entry decision tree for one READY POI state
// against the current candle. Returns nil when no signal should fire.
func EvaluateEntry(state types.POIState, candle types.Candle, barIndex int, ts time.Time, fta *types.POI, ftaClass FTADistance, sync types.SyncMode, nearbyFVGs []types.FVG, nearbyLiquidity []types.LiquidityLevel, cfg types.StrategyConfig) *types.Signal {
	if state.Phase != types.PhaseReady {
		return nil
	}

	canEnter, _ := ShouldEnterWithFTA(fta, ftaClass)
	if !canEnter {
		return nil
	}

	direction := state.POI.Direction

	if confirm.Has5thConfirmTrap(state.Confirmations) {
		if cfg.Entry.RTOWait {
			if !checkRTOEntry(direction, candle, nearbyFVGs) {
				return nil
			}
			return buildEntrySignal(state, candle, barIndex, ts, sync, nearbyFVGs, nearbyLiquidity, cfg, "RTO entry after 5th-confirm trap")
		}
		// rto_wait disabled: fall through to the normal mode evaluation below.
	}

	switch cfg.Entry.Mode {
	case "aggressive":
		if checkAggressiveEntry() {
			return buildEntrySignal(state, candle, barIndex, ts, sync, nearbyFVGs, nearbyLiquidity, cfg, "aggressive entry")
		}
	default:
		if checkConservativeEntry(state, candle) {
			return buildEntrySignal(state, candle, barIndex, ts, sync, nearbyFVGs, nearbyLiquidity, cfg, "conservative entry")
		}
	}

	return nil
}

// checkConservativeEntry requires the candle's close to have exited the POI
// zone in trade direction: long closes above the top, short below the
// bottom.
func checkConservativeEntry(state types.POIState, candle types.Candle) bool {
	if state.POI.Direction == types.Bullish {
		return candle.Close.GreaterThan(state.POI.Top)
	}
	return candle.Close.LessThan(state.POI.Bottom)
}

// checkAggressiveEntry always fires once the phase is READY.
func checkAggressiveEntry() bool {
	return true
}

// checkRTOEntry looks for price returning to test an active same-direction
// FVG: long wicks into a bullish FVG's top, short wicks into a bearish
// FVG's bottom.
func checkRTOEntry(direction types.Direction, candle types.Candle, nearbyFVGs []types.FVG) bool {
	for _, f := range nearbyFVGs {
		if !activeFVGStatusesForRTO[f.Status] || f.Direction != direction {
			continue
		}
		if direction == types.Bullish {
			if candle.Low.LessThanOrEqual(f.Top) {
				return true
			}
		} else if candle.High.GreaterThanOrEqual(f.Bottom) {
			return true
		}
	}
	return false
}

func buildEntrySignal(state types.POIState, candle types.Candle, barIndex int, ts time.Time, sync types.SyncMode, nearbyFVGs []types.FVG, nearbyLiquidity []types.LiquidityLevel, cfg types.StrategyConfig, reason string) *types.Signal {
	direction := state.POI.Direction
	entry := candle.Close

	method := StopLossMethod(cfg.Risk.StopLossMethod)
	if method == "" {
		method = StopBehindLiquidity
	}
	sl := CalculateStopLoss(state.POI, direction, nearbyFVGs, nearbyLiquidity, method)

	slDistance := entry.Sub(sl).Abs()
	var roughTarget decimal.Decimal
	if direction == types.Bullish {
		roughTarget = entry.Add(slDistance.Mul(rrTargetMultiple))
	} else {
		roughTarget = entry.Sub(slDistance.Mul(rrTargetMultiple))
	}

	valid, rr := ValidateRisk(entry, sl, roughTarget, direction, roughTargetMinRR)
	if !valid {
		return nil
	}

	sizeMult := PositionSizeMultiplier(sync, cfg.Risk)

	return &types.Signal{
		Kind:      types.SignalEnter,
		POIID:     state.POIID,
		Direction: direction,
		Time:      ts,
		BarIndex:  barIndex,
		Price:     entry,
		Stop:      sl,
		Target:    roughTarget,
		SizeMult:  decimal.NewFromFloat(sizeMult),
		Reason:    reason,
		Metadata: map[string]any{
			"barIndex":          barIndex,
			"syncMode":          string(sync),
			"rr":                rr,
			"confirmationCount": len(state.Confirmations),
		},
	}
}
