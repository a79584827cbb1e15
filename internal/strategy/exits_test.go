package strategy

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func positionedState(direction types.Direction, entry, stop, target float64) types.POIState {
	return types.POIState{
		POIID: "15m_1_0", Phase: types.PhasePositioned,
		POI:        types.POI{Direction: direction},
		EntryPrice: ftaDec(entry), StopLoss: ftaDec(stop), Target: ftaDec(target),
	}
}

func TestEvaluateExitStopBeforeTarget(t *testing.T) {
	state := positionedState(types.Bullish, 100, 98, 102)
	candle := types.Candle{Open: ftaDec(99), High: ftaDec(103), Low: ftaDec(97), Close: ftaDec(98)}
	got := EvaluateExit(state, candle, 1, time.Now(), nil, nil, ftaDec(0.0006), defaultStrategyCfg())
	if got == nil || got.Reason != string(types.ReasonStopLossHit) {
		t.Fatalf("expected STOP_LOSS_HIT when both boundaries breach in one bar, got %+v", got)
	}
}

func TestEvaluateExitTargetHit(t *testing.T) {
	state := positionedState(types.Bullish, 100, 98, 102)
	candle := types.Candle{Open: ftaDec(101), High: ftaDec(103), Low: ftaDec(100.5), Close: ftaDec(102.5)}
	got := EvaluateExit(state, candle, 1, time.Now(), nil, nil, ftaDec(0.0006), defaultStrategyCfg())
	if got == nil || got.Reason != string(types.ReasonTargetHit) {
		t.Fatalf("expected TARGET_HIT, got %+v", got)
	}
}

func TestEvaluateExitStructuralBreakeven(t *testing.T) {
	state := positionedState(types.Bullish, 100, 98, 110)
	structure := []types.StructureEvent{{Direction: types.Bullish, BreakIndex: 5}}
	candle := types.Candle{Open: ftaDec(101), High: ftaDec(103), Low: ftaDec(100.5), Close: ftaDec(102)}
	got := EvaluateExit(state, candle, 5, time.Now(), nil, structure, ftaDec(0.0006), defaultStrategyCfg())
	if got == nil || got.Kind != types.SignalMoveToBE {
		t.Fatalf("expected MOVE_TO_BE from structural break, got %+v", got)
	}
}

func TestEvaluateExitFTABreakeven(t *testing.T) {
	state := positionedState(types.Bullish, 100, 98, 110)
	fta := types.POI{Top: ftaDec(103), Bottom: ftaDec(101)} // midpoint 102
	candle := types.Candle{Open: ftaDec(101), High: ftaDec(103), Low: ftaDec(100.5), Close: ftaDec(102.5)}
	got := EvaluateExit(state, candle, 5, time.Now(), &fta, nil, ftaDec(0.0006), defaultStrategyCfg())
	if got == nil || got.Kind != types.SignalMoveToBE {
		t.Fatalf("expected MOVE_TO_BE from FTA breakeven once price passes the midpoint, got %+v", got)
	}
}

func TestEvaluateExitIgnoresNonPositionedPhase(t *testing.T) {
	state := positionedState(types.Bullish, 100, 98, 102)
	state.Phase = types.PhaseReady
	candle := types.Candle{High: ftaDec(103), Low: ftaDec(97)}
	got := EvaluateExit(state, candle, 1, time.Now(), nil, nil, ftaDec(0.0006), defaultStrategyCfg())
	if got != nil {
		t.Fatalf("expected nil for a non-open state, got %+v", got)
	}
}
