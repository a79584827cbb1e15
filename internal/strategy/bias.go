// Package strategy implements the decision layer (C7): bias/sync, FTA
// filtering, stop-loss placement, position sizing, risk validation, target
// selection, and the entry/exit/add-on decision trees that turn a POI
// state-machine record into Signals.
//
// Grounded on original_source/context/bias.py, context/sync_checker.py,
// strategy/fta_handler.py, strategy/risk.py, strategy/entries.py,
// strategy/exits.py, and strategy/addons.py.
package strategy

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// DetermineBias derives a directional bias from the most recent lookback
// structure events. BOS events weight 2 (reversal), cBOS events weight 1
// (continuation). Bullish/bearish ratio > 0.6 of the total decides the
// direction; otherwise UNDEFINED.
func DetermineBias(events []types.StructureEvent, lookback int) types.Bias {
	if len(events) == 0 {
		return types.BiasUndefined
	}
	recent := events
	if len(recent) > lookback {
		recent = recent[len(recent)-lookback:]
	}

	var bullish, bearish float64
	for _, ev := range recent {
		weight := 1.0
		if ev.Kind == types.BOS {
			weight = 2.0
		}
		switch ev.Direction {
		case types.Bullish:
			bullish += weight
		case types.Bearish:
			bearish += weight
		}
	}

	total := bullish + bearish
	if total == 0 {
		return types.BiasUndefined
	}
	if bullish/total > 0.6 {
		return types.BiasBullish
	}
	if bearish/total > 0.6 {
		return types.BiasBearish
	}
	return types.BiasUndefined
}

// DetermineBiasAt is the time-gated variant: only events whose BreakTime is
// at or before timestamp are considered.
func DetermineBiasAt(events []types.StructureEvent, timestamp time.Time, lookback int) types.Bias {
	if len(events) == 0 {
		return types.BiasUndefined
	}
	filtered := make([]types.StructureEvent, 0, len(events))
	for _, ev := range events {
		if !ev.BreakTime.After(timestamp) {
			filtered = append(filtered, ev)
		}
	}
	return DetermineBias(filtered, lookback)
}

// CheckSync determines the alignment between an HTF and an LTF bias.
func CheckSync(htf, ltf types.Bias) types.SyncMode {
	if htf == types.BiasUndefined || ltf == types.BiasUndefined {
		return types.SyncUndefined
	}
	if htf == ltf {
		return types.SyncSync
	}
	return types.SyncDesync
}

// PositionSizeMultiplier maps a sync mode to the configured size multiplier:
// SYNC -> risk.PositionSizeSync, DESYNC -> risk.PositionSizeDesync,
// UNDEFINED -> 0 (no trading).
func PositionSizeMultiplier(sync types.SyncMode, risk types.RiskConfig) float64 {
	switch sync {
	case types.SyncSync:
		return risk.PositionSizeSync
	case types.SyncDesync:
		return risk.PositionSizeDesync
	default:
		return 0
	}
}

// TargetMode reports which POI pool target selection should scan: "distant"
// for SYNC (primary TF), "local" for DESYNC (local TF), "none" otherwise.
func TargetMode(sync types.SyncMode) string {
	switch sync {
	case types.SyncSync:
		return "distant"
	case types.SyncDesync:
		return "local"
	default:
		return "none"
	}
}
