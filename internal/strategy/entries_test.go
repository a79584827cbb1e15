package strategy

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func readyState(direction types.Direction) types.POIState {
	return types.POIState{
		POIID: "15m_1_0",
		Phase: types.PhaseReady,
		POI:   types.POI{Direction: direction, Top: ftaDec(105), Bottom: ftaDec(100)},
	}
}

func defaultStrategyCfg() types.StrategyConfig {
	return types.StrategyConfig{
		Entry:     types.EntryConfig{Mode: "conservative", RTOWait: true},
		Breakeven: types.BreakevenConfig{StructuralBU: true, FTABU: true},
		Risk: types.RiskConfig{
			PositionSizeSync: 1.0, PositionSizeDesync: 0.5,
			MaxRiskPerTrade: 0.02, StopLossMethod: "behind_poi",
		},
	}
}

func TestEvaluateEntryRejectsNonReadyPhase(t *testing.T) {
	state := readyState(types.Bullish)
	state.Phase = types.PhaseCollecting
	candle := types.Candle{Close: ftaDec(106)}
	got := EvaluateEntry(state, candle, 1, time.Now(), nil, "", types.SyncSync, nil, nil, defaultStrategyCfg())
	if got != nil {
		t.Fatalf("expected nil for non-READY phase, got %+v", got)
	}
}

func TestEvaluateEntryBlockedByCloseFTA(t *testing.T) {
	state := readyState(types.Bullish)
	candle := types.Candle{Open: ftaDec(105), High: ftaDec(107), Low: ftaDec(104), Close: ftaDec(106)}
	fta := types.POI{Top: ftaDec(109), Bottom: ftaDec(108)}
	got := EvaluateEntry(state, candle, 1, time.Now(), &fta, FTAClose, types.SyncSync, nil, nil, defaultStrategyCfg())
	if got != nil {
		t.Fatalf("expected nil when FTA is close, got %+v", got)
	}
}

func TestEvaluateEntryConservativeModeRequiresCloseBeyondZone(t *testing.T) {
	state := readyState(types.Bullish)
	insideCandle := types.Candle{Open: ftaDec(102), High: ftaDec(104), Low: ftaDec(101), Close: ftaDec(103)}
	if got := EvaluateEntry(state, insideCandle, 1, time.Now(), nil, FTAFar, types.SyncSync, nil, nil, defaultStrategyCfg()); got != nil {
		t.Fatalf("expected no entry while close is still inside the POI zone, got %+v", got)
	}

	beyondCandle := types.Candle{Open: ftaDec(104), High: ftaDec(108), Low: ftaDec(103), Close: ftaDec(107)}
	got := EvaluateEntry(state, beyondCandle, 1, time.Now(), nil, FTAFar, types.SyncSync, nil, nil, defaultStrategyCfg())
	if got == nil {
		t.Fatalf("expected an ENTER signal once close exits the zone")
	}
	if got.Kind != types.SignalEnter || got.Direction != types.Bullish {
		t.Fatalf("unexpected signal: %+v", got)
	}
}

func TestEvaluateEntryAggressiveFiresImmediately(t *testing.T) {
	state := readyState(types.Bullish)
	cfg := defaultStrategyCfg()
	cfg.Entry.Mode = "aggressive"
	candle := types.Candle{Open: ftaDec(102), High: ftaDec(103), Low: ftaDec(101), Close: ftaDec(102.5)}
	got := EvaluateEntry(state, candle, 1, time.Now(), nil, FTAFar, types.SyncSync, nil, nil, cfg)
	if got == nil {
		t.Fatalf("expected aggressive mode to fire immediately")
	}
}

func TestEvaluateEntry5thConfirmTrapWithoutRTOBlocks(t *testing.T) {
	state := readyState(types.Bullish)
	state.Confirmations = []types.Confirmation{
		{Kind: types.ConfirmPOITap}, {Kind: types.ConfirmLiquiditySweep},
		{Kind: types.ConfirmStructureBreak}, {Kind: types.ConfirmPOITap},
		{Kind: types.ConfirmStructureBreak},
	}
	candle := types.Candle{Open: ftaDec(104), High: ftaDec(108), Low: ftaDec(103), Close: ftaDec(107)}
	got := EvaluateEntry(state, candle, 1, time.Now(), nil, FTAFar, types.SyncSync, nil, nil, defaultStrategyCfg())
	if got != nil {
		t.Fatalf("expected trap to block entry absent an RTO retest, got %+v", got)
	}
}

func TestEvaluateEntry5thConfirmTrapAllowsRTO(t *testing.T) {
	state := readyState(types.Bullish)
	state.Confirmations = []types.Confirmation{
		{Kind: types.ConfirmPOITap}, {Kind: types.ConfirmLiquiditySweep},
		{Kind: types.ConfirmStructureBreak}, {Kind: types.ConfirmPOITap},
		{Kind: types.ConfirmStructureBreak},
	}
	fvg := types.FVG{Direction: types.Bullish, Top: ftaDec(106), Bottom: ftaDec(104), Status: types.FVGFresh}
	candle := types.Candle{Open: ftaDec(106), High: ftaDec(107), Low: ftaDec(105), Close: ftaDec(106.5)}
	got := EvaluateEntry(state, candle, 1, time.Now(), nil, FTAFar, types.SyncSync, []types.FVG{fvg}, nil, defaultStrategyCfg())
	if got == nil {
		t.Fatalf("expected RTO retest into the FVG to unblock entry")
	}
}
