package backtest

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/poistate"
	"github.com/atlas-desktop/trading-backend/internal/portfolio"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// The scenarios below drive the POI state machine, the strategy decision
// functions, and the portfolio directly rather than through Run's raw-candle
// detection pipeline, so each expected number is hand-checkable against the
// concrete fill/commission/slippage arithmetic instead of depending on
// swing/FVG auto-detection thresholds.

var scenarioBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func scenarioBar(i int) time.Time { return scenarioBase.Add(time.Duration(i) * time.Minute) }

// registerTappedReadyPOI builds a bullish demand-zone POI at [100,108],
// taps and readies it in a single Update call by supplying a matching
// structure-break event on the tap bar: POI_TAP plus STRUCTURE_BREAK clears
// a 2-confirmation threshold.
func registerTappedReadyPOI(t *testing.T, mgr *poistate.Manager, tapBarIndex int) (string, types.POIState) {
	t.Helper()
	poi := types.POI{Direction: types.Bullish, Top: pdec(108), Bottom: pdec(100), Status: types.POIActive}
	id := mgr.Register(poi, types.TF5m, scenarioBase)

	tapCandle := types.Candle{Time: scenarioBar(tapBarIndex), Open: pdec(107), High: pdec(108), Low: pdec(103), Close: pdec(106)}
	cd := poistate.ConceptData{Structure: []types.StructureEvent{{Kind: types.BOS, Direction: types.Bullish, BreakIndex: tapBarIndex}}}
	mgr.Update(tapCandle, tapBarIndex, tapCandle.Time, cd)

	state, err := mgr.Get(id)
	if err != nil {
		t.Fatalf("unexpected error fetching state: %v", err)
	}
	if state.Phase != types.PhaseReady {
		t.Fatalf("expected READY after tap+structure-break bar, got %s (confirmations=%d)", state.Phase, len(state.Confirmations))
	}
	if len(state.Confirmations) < 2 {
		t.Fatalf("expected at least 2 confirmations (POI_TAP, STRUCTURE_BREAK), got %d", len(state.Confirmations))
	}
	return id, state
}

// TestS1BullishPOITargetHit: demand zone at 100-108, entry at 109 with stop
// 99 and target 130, price rallies through 130. One WIN trade, R ~ 2.1,
// final equity above initial capital.
func TestS1BullishPOITargetHit(t *testing.T) {
	mgr := poistate.NewManager(2, 5)
	id, _ := registerTappedReadyPOI(t, mgr, 5)

	p := portfolio.New(pdec(10000), pdec(0.0006), pdec(0.0002), 3, 50)
	rec, ok, err := p.Enter(id, types.Bullish, scenarioBar(6), 6, pdec(109), pdec(99), pdec(130), pdec(10), types.SyncSync, types.TF5m, 2, false, "")
	if !ok || err != nil {
		t.Fatalf("expected entry to be accepted, err=%v", err)
	}
	if err := mgr.SetPositioned(id, rec.EntryPrice, pdec(99), pdec(130)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, _ := mgr.Get(id)
	rallyCandle := types.Candle{Time: scenarioBar(20), High: pdec(131), Low: pdec(125), Close: pdec(130)}
	signal := strategy.EvaluateExit(state, rallyCandle, 20, rallyCandle.Time, nil, nil, pdec(0.0006), types.StrategyConfig{})
	if signal == nil || signal.Kind != types.SignalExit || signal.Reason != string(types.ReasonTargetHit) {
		t.Fatalf("expected a TARGET_HIT exit signal, got %+v", signal)
	}

	closed := p.Exit(id, signal.Time, 20, signal.Price, types.ReasonTargetHit)
	if len(closed) != 1 {
		t.Fatalf("expected exactly one closed leg, got %d", len(closed))
	}
	trade := closed[0]
	if trade.Outcome != types.OutcomeWin {
		t.Fatalf("expected WIN, got %s (realized=%s)", trade.Outcome, trade.RealizedPnL)
	}
	if trade.RMultiple < 2.0 || trade.RMultiple > 2.2 {
		t.Fatalf("expected R ~= 2.1, got %v", trade.RMultiple)
	}
	if p.Equity(pdec(130)).LessThanOrEqual(pdec(10000)) {
		t.Fatalf("expected final equity above initial capital, got %s", p.Equity(pdec(130)))
	}
}

// TestS2StopLossHitBeforeTarget: same POI and entry, price instead drops to
// 98 before reaching target. One LOSS trade, R ~ -1.0, MAE >= entry-98.
func TestS2StopLossHitBeforeTarget(t *testing.T) {
	mgr := poistate.NewManager(2, 5)
	id, _ := registerTappedReadyPOI(t, mgr, 5)

	p := portfolio.New(pdec(10000), pdec(0.0006), pdec(0.0002), 3, 50)
	rec, ok, err := p.Enter(id, types.Bullish, scenarioBar(6), 6, pdec(109), pdec(99), pdec(130), pdec(10), types.SyncSync, types.TF5m, 2, false, "")
	if !ok || err != nil {
		t.Fatalf("expected entry to be accepted, err=%v", err)
	}
	if err := mgr.SetPositioned(id, rec.EntryPrice, pdec(99), pdec(130)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dropCandle := types.Candle{Time: scenarioBar(10), High: pdec(107), Low: pdec(98), Close: pdec(99.5)}
	p.MarkToMarket(10, dropCandle.Time, dropCandle.High, dropCandle.Low, dropCandle.Close)

	state, _ := mgr.Get(id)
	signal := strategy.EvaluateExit(state, dropCandle, 10, dropCandle.Time, nil, nil, pdec(0.0006), types.StrategyConfig{})
	if signal == nil || signal.Kind != types.SignalExit || signal.Reason != string(types.ReasonStopLossHit) {
		t.Fatalf("expected a STOP_LOSS_HIT exit signal, got %+v", signal)
	}

	closed := p.Exit(id, signal.Time, 10, signal.Price, types.ReasonStopLossHit)
	if len(closed) != 1 {
		t.Fatalf("expected exactly one closed leg, got %d", len(closed))
	}
	trade := closed[0]
	if trade.Outcome != types.OutcomeLoss {
		t.Fatalf("expected LOSS, got %s (realized=%s)", trade.Outcome, trade.RealizedPnL)
	}
	if trade.RMultiple > -0.9 || trade.RMultiple < -1.1 {
		t.Fatalf("expected R ~= -1.0, got %v", trade.RMultiple)
	}
	entryMinus98 := rec.EntryPrice.Sub(pdec(98))
	if trade.MaxAdverseExcursion.LessThan(entryMinus98) {
		t.Fatalf("expected MAE >= entry-98 (%s), got %s", entryMinus98, trade.MaxAdverseExcursion)
	}
}

// TestS3BreakevenMoveThenRetrace: entry at 109, a same-direction structure
// break at 115 moves the stop to breakeven (entry * 1.0012 at this
// commission rate), price then drops back through the new stop. One
// BREAKEVEN trade with realized P&L within commission tolerance of zero.
func TestS3BreakevenMoveThenRetrace(t *testing.T) {
	mgr := poistate.NewManager(2, 5)
	id, _ := registerTappedReadyPOI(t, mgr, 5)

	commissionPct := pdec(0.0006)
	p := portfolio.New(pdec(10000), commissionPct, pdec(0.0002), 3, 50)
	rec, ok, err := p.Enter(id, types.Bullish, scenarioBar(6), 6, pdec(109), pdec(99), pdec(130), pdec(10), types.SyncSync, types.TF5m, 2, false, "")
	if !ok || err != nil {
		t.Fatalf("expected entry to be accepted, err=%v", err)
	}
	if err := mgr.SetPositioned(id, rec.EntryPrice, pdec(99), pdec(130)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, _ := mgr.Get(id)
	beCfg := types.StrategyConfig{Breakeven: types.BreakevenConfig{StructuralBU: true}}
	structureBreakCandle := types.Candle{Time: scenarioBar(12), High: pdec(115), Low: pdec(113), Close: pdec(114.5)}
	structureEvents := []types.StructureEvent{{Kind: types.BOS, Direction: types.Bullish, BreakIndex: 12}}

	beSignal := strategy.EvaluateExit(state, structureBreakCandle, 12, structureBreakCandle.Time, nil, structureEvents, commissionPct, beCfg)
	if beSignal == nil || beSignal.Kind != types.SignalMoveToBE {
		t.Fatalf("expected a MOVE_TO_BE signal at the structure break, got %+v", beSignal)
	}

	breakeven := strategy.CalculateBreakevenLevel(rec.EntryPrice, types.Bullish, commissionPct)
	if !beSignal.Price.Equal(breakeven) {
		t.Fatalf("MOVE_TO_BE price = %s, want %s", beSignal.Price, breakeven)
	}
	p.MoveStop(id, breakeven)
	if err := mgr.SetManaging(id, breakeven); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	managingState, _ := mgr.Get(id)
	managingState.StopLoss = breakeven // SetManaging only records BreakevenLevel; mirror it onto StopLoss for the exit check below
	retraceCandle := types.Candle{Time: scenarioBar(18), High: pdec(114), Low: pdec(108), Close: pdec(109)}
	exitSignal := strategy.EvaluateExit(managingState, retraceCandle, 18, retraceCandle.Time, nil, nil, commissionPct, beCfg)
	if exitSignal == nil || exitSignal.Kind != types.SignalExit || exitSignal.Reason != string(types.ReasonStopLossHit) {
		t.Fatalf("expected the retrace to trip the breakeven stop, got %+v", exitSignal)
	}

	closed := p.Exit(id, exitSignal.Time, 18, exitSignal.Price, types.ReasonStopLossHit)
	if len(closed) != 1 {
		t.Fatalf("expected exactly one closed leg, got %d", len(closed))
	}
	trade := closed[0]
	if trade.Outcome != types.OutcomeBreakeven {
		t.Fatalf("expected BREAKEVEN, got %s (realized=%s)", trade.Outcome, trade.RealizedPnL)
	}
	tolerance := pdec(3)
	if trade.RealizedPnL.Abs().GreaterThan(tolerance) {
		t.Fatalf("expected realized P&L near zero within commission tolerance, got %s", trade.RealizedPnL)
	}
}

// TestS4MaxPositionCap: max_concurrent_positions=2, three independent POIs
// ready in the same bar. Exactly 2 ENTER accepted, the third rejected with
// the max-concurrent-positions reason.
func TestS4MaxPositionCap(t *testing.T) {
	p := portfolio.New(pdec(10000), pdec(0.0006), pdec(0.0002), 2, 10)

	_, okA, errA := p.Enter("poi-A", types.Bullish, scenarioBar(0), 0, pdec(100), pdec(95), pdec(115), pdec(10), types.SyncSync, types.TF5m, 2, false, "")
	_, okB, errB := p.Enter("poi-B", types.Bullish, scenarioBar(0), 0, pdec(101), pdec(96), pdec(116), pdec(10), types.SyncSync, types.TF5m, 2, false, "")
	_, okC, errC := p.Enter("poi-C", types.Bullish, scenarioBar(0), 0, pdec(102), pdec(97), pdec(117), pdec(10), types.SyncSync, types.TF5m, 2, false, "")

	if !okA || errA != nil {
		t.Fatalf("first POI should be accepted, err=%v", errA)
	}
	if !okB || errB != nil {
		t.Fatalf("second POI should be accepted, err=%v", errB)
	}
	if okC || errC != portfolio.ErrMaxConcurrentPositions {
		t.Fatalf("third POI should be rejected at the cap (max_positions_reached), got ok=%v err=%v", okC, errC)
	}
	if p.OpenPOICount() != 2 {
		t.Fatalf("expected exactly 2 open positions, got %d", p.OpenPOICount())
	}
}

// TestS5FTACloseBlocksEntry: a POI ready at 100 with target 110 has an
// opposing POI at 101-103 sitting in its path; offset/range = 0.2 <= the
// 0.3 threshold, so FTA classifies as close and entry is blocked.
func TestS5FTACloseBlocksEntry(t *testing.T) {
	fta := types.POI{Direction: types.Bearish, Top: pdec(103), Bottom: pdec(101), Status: types.POIActive}
	classification := strategy.ClassifyFTADistance(fta, 100, 110, 0.3)
	if classification != strategy.FTAClose {
		t.Fatalf("offset/range = 2/10 = 0.2 should classify as close, got %s", classification)
	}
	canEnter, reason := strategy.ShouldEnterWithFTA(&fta, classification)
	if canEnter {
		t.Fatalf("expected entry to be blocked by a close FTA, reason=%q", reason)
	}
}

// TestS6AddOnAfterStructure: an open long at 100 (target 120) sees a local
// bullish POI at 108-110 tapped after a bullish structure break within the
// lookback window. One ADD_ON signal, size multiplier 0.5, parent-trade-id
// set to the main POI id.
func TestS6AddOnAfterStructure(t *testing.T) {
	mainState := types.POIState{
		POIID:      "main-poi",
		POI:        types.POI{Direction: types.Bullish, Top: pdec(102), Bottom: pdec(98), Status: types.POIActive},
		Phase:      types.PhasePositioned,
		EntryPrice: pdec(100),
		StopLoss:   pdec(95),
		Target:     pdec(120),
	}
	candidate := types.POI{Direction: types.Bullish, Top: pdec(110), Bottom: pdec(108), Status: types.POIActive}
	structureEvents := []types.StructureEvent{{Kind: types.BOS, Direction: types.Bullish, BreakIndex: 40}}

	touchCandle := types.Candle{Time: scenarioBar(45), High: pdec(111), Low: pdec(109), Close: pdec(110.5)}
	signal := strategy.EvaluateAddon(mainState, candidate, touchCandle, 45, touchCandle.Time, structureEvents)
	if signal == nil || signal.Kind != types.SignalAddOn {
		t.Fatalf("expected an ADD_ON signal, got %+v", signal)
	}
	if !signal.SizeMult.Equal(pdec(0.5)) {
		t.Fatalf("expected a 0.5 size multiplier, got %s", signal.SizeMult)
	}
	if signal.Metadata["parentTradeId"] != mainState.POIID {
		t.Fatalf("expected parentTradeId=%q, got %v", mainState.POIID, signal.Metadata["parentTradeId"])
	}
}
