// Package backtest is the orchestrator (C9): the single-threaded,
// deterministic bar-by-bar fold that drives every other concept package
// through one backtest run and assembles the final result.
//
// Grounded on original_source/engine/backtester.py's Backtester.run/
// _process_bar/_handle_entries/_handle_exits/_handle_addons, reshaped onto
// the teacher's internal/backtester/engine.go constructor-injection and
// zap-logging idiom. The teacher's priority-queue event bus is not
// reused — see internal/eventlog for why.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/eventlog"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/mtfcontext"
	"github.com/atlas-desktop/trading-backend/internal/poistate"
	"github.com/atlas-desktop/trading-backend/internal/portfolio"
	"github.com/atlas-desktop/trading-backend/internal/strategy"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoDataInRange is returned when a configured start/end date leaves no
// bars to replay.
var ErrNoDataInRange = errors.New("backtest: no bars in configured date range")

// biasLookback is the default number of recent structure events considered
// when determining HTF/LTF bias, per original_source/context/bias.py.
const biasLookback = 10

// tfRank orders timeframes from finest to coarsest so bias/add-on timeframe
// selection can fall back generically instead of hardcoding "1H"/"5m" as
// original_source/engine/backtester.py does.
var tfRank = map[string]int{"1m": 0, "5m": 1, "15m": 2, "30m": 3, "1H": 4, "4H": 5, "1D": 6}

// pickBiasTFs chooses the highest-ranked configured timeframe as the HTF and
// the lowest-ranked non-1m configured timeframe as the LTF, falling back to
// 1m when no other timeframe is configured.
func pickBiasTFs(tfs []string) (htf, ltf types.Timeframe) {
	if len(tfs) == 0 {
		return types.TF1m, types.TF1m
	}
	best, worst := tfs[0], ""
	for _, tf := range tfs {
		if tfRank[tf] > tfRank[best] {
			best = tf
		}
		if tf == "1m" {
			continue
		}
		if worst == "" || tfRank[tf] < tfRank[worst] {
			worst = tf
		}
	}
	if worst == "" {
		worst = "1m"
	}
	return types.Timeframe(best), types.Timeframe(worst)
}

// addonLTF picks the first timeframe listed in the local target pool for
// add-on candidate search (list order, not timeframe rank), defaulting to
// 15m when the pool is empty, per original_source/engine/backtester.py's
// `"15m" if present else "5m"` fallback, generalized to whatever the local
// target pool names first.
func addonLTF(localTF []string) types.Timeframe {
	if len(localTF) > 0 {
		return types.Timeframe(localTF[0])
	}
	return types.TF15m
}

// Runner holds the mutable state threaded through one backtest replay: the
// pre-computed multi-timeframe context, the POI state machine, the
// portfolio ledger, the audit log, and the current bias/sync snapshot.
type Runner struct {
	logger *zap.Logger
	cfg    types.Config

	manager   *mtfcontext.Manager
	sm        *poistate.Manager
	portfolio *portfolio.Portfolio
	events    *eventlog.Log

	signals        []types.Signal
	registeredKeys map[string]bool

	htfTF, ltfTF     types.Timeframe
	htfBias, ltfBias types.Bias
	syncMode         types.SyncMode
}

// Run replays oneMinute bar-by-bar under cfg and returns the assembled
// backtest result. logger may be nil.
func Run(logger *zap.Logger, cfg types.Config, oneMinute []types.Candle) (types.BacktestResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	filtered, err := filterDateRange(oneMinute, cfg.Backtest.StartDate, cfg.Backtest.EndDate)
	if err != nil {
		return types.BacktestResult{}, err
	}
	if len(filtered) == 0 {
		return types.BacktestResult{}, ErrNoDataInRange
	}

	manager, err := mtfcontext.NewManager(filtered, cfg)
	if err != nil {
		return types.BacktestResult{}, fmt.Errorf("backtest: %w", err)
	}

	sm := poistate.NewManager(cfg.Strategy.Confirmations.MinCount, cfg.Strategy.Confirmations.MaxCount)
	pf := portfolio.New(
		decimal.NewFromFloat(cfg.Backtest.InitialCapital),
		decimal.NewFromFloat(cfg.Backtest.CommissionPct),
		decimal.NewFromFloat(cfg.Backtest.SlippagePct),
		cfg.Strategy.Risk.MaxConcurrentPositions,
		len(filtered),
	)

	htfTF, ltfTF := pickBiasTFs(cfg.Data.Timeframes)

	r := &Runner{
		logger:         logger,
		cfg:            cfg,
		manager:        manager,
		sm:             sm,
		portfolio:      pf,
		events:         eventlog.New(),
		registeredKeys: make(map[string]bool),
		htfTF:          htfTF,
		ltfTF:          ltfTF,
	}

	r.registerNewPOIs(filtered[0].Time, 0)
	r.updateBiasSync(filtered[0].Time, 0)

	for i, c := range filtered {
		r.processBar(c, i)
	}

	last := filtered[len(filtered)-1]
	lastIdx := len(filtered) - 1
	closed := pf.CloseAllAtEndOfData(last.Time, lastIdx, last.Close)
	for _, rec := range closed {
		_ = sm.Close(rec.POIID)
		r.events.Emit(types.EventExit, last.Time, lastIdx, map[string]any{
			"poiId": rec.POIID, "tradeId": rec.TradeID, "reason": rec.ExitReason,
		})
	}

	timeIndex := make([]time.Time, len(filtered))
	for i, c := range filtered {
		timeIndex[i] = c.Time
	}

	m := metrics.Compute(pf.Trades(), pf.EquityCurve(), cfg.Backtest, timeIndex)

	result := types.BacktestResult{
		Trades:      pf.Trades(),
		EquityCurve: pf.EquityCurve(),
		Metrics:     m,
		Signals:     r.signals,
		Events:      r.events.All(),
		Config:      cfg,
		TimeIndex:   timeIndex,
	}

	logger.Info("backtest completed",
		zap.Int("bars", len(filtered)),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("totalReturn", m.TotalReturn),
	)
	return result, nil
}

// filterDateRange restricts bars to [startDate, endDate] inclusive, both in
// "2006-01-02" form; an empty bound leaves that side unrestricted.
func filterDateRange(bars []types.Candle, startDate, endDate string) ([]types.Candle, error) {
	var start, end time.Time
	if startDate != "" {
		s, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return nil, fmt.Errorf("backtest: invalid start_date %q: %w", startDate, err)
		}
		start = s
	}
	if endDate != "" {
		e, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return nil, fmt.Errorf("backtest: invalid end_date %q: %w", endDate, err)
		}
		end = e.AddDate(0, 0, 1)
	}

	out := make([]types.Candle, 0, len(bars))
	for _, c := range bars {
		if !start.IsZero() && c.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !c.Time.Before(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// flattenActive strips the timeframe tag from mtfcontext's ActivePOI union.
func flattenActive(active []mtfcontext.ActivePOI) []types.POI {
	out := make([]types.POI, len(active))
	for i, a := range active {
		out[i] = a.POI
	}
	return out
}

// registerNewPOIs enrolls every not-yet-seen POI across all configured
// timeframes into the state machine, deduped by timeframe/direction/range
// fingerprint.
func (r *Runner) registerNewPOIs(ts time.Time, barIndex int) {
	for _, tfName := range r.cfg.Data.Timeframes {
		tf := types.Timeframe(tfName)
		pois, err := r.manager.POIsAt(tf, ts)
		if err != nil {
			continue
		}
		for _, p := range pois {
			key := fmt.Sprintf("%s_%d_%s_%s", tf, p.Direction, p.Top.StringFixed(6), p.Bottom.StringFixed(6))
			if r.registeredKeys[key] {
				continue
			}
			r.registeredKeys[key] = true
			id := r.sm.Register(p, tf, ts)
			r.events.Emit(types.EventPOIRegistered, ts, barIndex, map[string]any{
				"poiId": id, "timeframe": tf, "direction": p.Direction,
			})
		}
	}
}

// updateBiasSync recomputes HTF/LTF structural bias and the resulting sync
// mode, run once at the start of replay and again on every higher-timeframe
// close.
func (r *Runner) updateBiasSync(ts time.Time, barIndex int) {
	htfEvents, _ := r.manager.StructureAt(r.htfTF, ts)
	r.htfBias = strategy.DetermineBias(htfEvents, biasLookback)

	ltfEvents, _ := r.manager.StructureAt(r.ltfTF, ts)
	r.ltfBias = strategy.DetermineBias(ltfEvents, biasLookback)

	r.syncMode = strategy.CheckSync(r.htfBias, r.ltfBias)

	r.events.Emit(types.EventBiasUpdated, ts, barIndex, map[string]any{
		"htfBias": r.htfBias, "ltfBias": r.ltfBias,
	})
	r.events.Emit(types.EventSyncUpdated, ts, barIndex, map[string]any{
		"syncMode": r.syncMode,
	})
}

// processBar carries one 1-minute bar through the fixed evaluation order
// required by the no-look-ahead design: TF-boundary bookkeeping, POI
// state-machine advancement, exits, entries, add-ons, then mark-to-market.
func (r *Runner) processBar(c types.Candle, barIndex int) {
	ts := c.Time

	for _, tfName := range r.cfg.Data.Timeframes {
		if tfName == "1m" {
			continue
		}
		tf := types.Timeframe(tfName)
		closed, err := r.manager.TFJustClosed(tf, ts)
		if err == nil && closed {
			r.registerNewPOIs(ts, barIndex)
			r.updateBiasSync(ts, barIndex)
			break
		}
	}

	fvgs1m, _ := r.manager.FVGsAt(types.TF1m, ts)
	lifecycle1m, _ := r.manager.FVGLifecycleAt(types.TF1m, ts)
	liquidity1m, _ := r.manager.LiquidityAt(types.TF1m, ts)
	structure1m, _ := r.manager.StructureAt(types.TF1m, ts)
	cd := poistate.ConceptData{
		NearbyFVGs:   fvgs1m,
		FVGLifecycle: lifecycle1m,
		Liquidity:    liquidity1m,
		Structure:    structure1m,
	}
	r.sm.Update(c, barIndex, ts, cd)

	r.handleExits(c, barIndex, ts, structure1m)
	r.handleEntries(c, barIndex, ts, fvgs1m, liquidity1m)
	r.handleAddons(c, barIndex, ts, structure1m)

	r.portfolio.MarkToMarket(barIndex, ts, c.High, c.Low, c.Close)
}

// handleExits evaluates every positioned/managing POI for a stop/target/
// breakeven signal and applies it against the portfolio.
func (r *Runner) handleExits(c types.Candle, barIndex int, ts time.Time, structureEvents1m []types.StructureEvent) {
	for _, state := range r.sm.PositionedStates() {
		fta := r.firstTroubleAreaFor(state, c, ts)

		sig := strategy.EvaluateExit(state, c, barIndex, ts, fta, structureEvents1m,
			decimal.NewFromFloat(r.cfg.Backtest.CommissionPct), r.cfg.Strategy)
		if sig == nil {
			continue
		}
		r.signals = append(r.signals, *sig)

		switch sig.Kind {
		case types.SignalExit:
			closed := r.portfolio.Exit(state.POIID, ts, barIndex, sig.Price, types.ExitReason(sig.Reason))
			_ = r.sm.Close(state.POIID)
			for _, rec := range closed {
				r.events.Emit(types.EventExit, ts, barIndex, map[string]any{
					"poiId": rec.POIID, "tradeId": rec.TradeID,
					"reason": rec.ExitReason, "realizedPnl": rec.RealizedPnL,
				})
			}
		case types.SignalMoveToBE:
			r.portfolio.MoveStop(state.POIID, sig.Price)
			_ = r.sm.SetManaging(state.POIID, sig.Price)
			r.events.Emit(types.EventBEMoved, ts, barIndex, map[string]any{
				"poiId": state.POIID, "level": sig.Price,
			})
		}
	}
}

// handleEntries evaluates every READY POI for an entry signal, sizes the
// resulting position by risk, and opens it against the portfolio.
func (r *Runner) handleEntries(c types.Candle, barIndex int, ts time.Time, fvgs1m []types.FVG, liquidity1m []types.LiquidityLevel) {
	for _, state := range r.sm.ReadyStates() {
		if r.portfolio.IsOpen(state.POIID) {
			continue
		}
		if r.portfolio.OpenPOICount() >= r.cfg.Strategy.Risk.MaxConcurrentPositions {
			r.events.Emit(types.EventPositionRejected, ts, barIndex, map[string]any{
				"poiId": state.POIID, "reason": "max_positions_reached",
			})
			continue
		}

		active, err := r.manager.AllActivePOIs(ts)
		var flat []types.POI
		if err == nil {
			flat = flattenActive(active)
		}

		targetEst := r.selectTargetFor(state.POI.Direction, c.Close, flat, ts)

		var fta *types.POI
		ftaClass := strategy.FTAFar
		if len(flat) > 0 {
			fta = strategy.DetectFTA(state.POI.Direction, c.Close.InexactFloat64(), targetEst.InexactFloat64(), flat)
			if fta != nil {
				ftaClass = strategy.ClassifyFTADistance(*fta, c.Close.InexactFloat64(), targetEst.InexactFloat64(), r.cfg.Strategy.FTA.CloseThresholdPct)
			}
		}

		sig := strategy.EvaluateEntry(state, c, barIndex, ts, fta, ftaClass, r.syncMode, fvgs1m, liquidity1m, r.cfg.Strategy)
		if sig == nil {
			continue
		}
		if sig.Target.IsZero() {
			sig.Target = targetEst
		}
		r.signals = append(r.signals, *sig)

		equity := r.portfolio.Equity(c.Close)
		size := strategy.CalculatePositionSize(equity, sig.Price, sig.Stop, r.syncMode, r.cfg.Strategy.Risk)

		rec, ok, err := r.portfolio.Enter(state.POIID, sig.Direction, ts, barIndex, sig.Price, sig.Stop, sig.Target, size,
			r.syncMode, state.Timeframe, len(state.Confirmations), false, "")
		if !ok {
			reason := "rejected"
			if err != nil {
				reason = err.Error()
			}
			r.events.Emit(types.EventPositionRejected, ts, barIndex, map[string]any{
				"poiId": state.POIID, "reason": reason,
			})
			continue
		}
		_ = r.sm.SetPositioned(state.POIID, rec.EntryPrice, sig.Stop, sig.Target)
		r.events.Emit(types.EventEntry, ts, barIndex, map[string]any{
			"poiId": state.POIID, "tradeId": rec.TradeID, "entryPrice": rec.EntryPrice,
		})
	}
}

// selectTargetFor resolves the swing pool per the current sync mode
// ("distant" pulls from the primary-timeframe pool, "local" from the
// local-timeframe pool) and delegates to strategy.SelectTarget.
func (r *Runner) selectTargetFor(direction types.Direction, currentPrice decimal.Decimal, activePOIs []types.POI, ts time.Time) decimal.Decimal {
	var pool []string
	switch strategy.TargetMode(r.syncMode) {
	case "distant":
		pool = r.cfg.Strategy.Targets.PrimaryTF
	case "local":
		pool = r.cfg.Strategy.Targets.LocalTF
	}

	var swings []types.Swing
	for _, tfName := range pool {
		s, err := r.manager.SwingsAt(types.Timeframe(tfName), ts)
		if err == nil {
			swings = append(swings, s...)
		}
	}
	return strategy.SelectTarget(direction, currentPrice, activePOIs, swings)
}

// firstTroubleAreaFor locates the nearest opposing POI between price and a
// positioned trade's target, used to gate exit breakeven logic.
func (r *Runner) firstTroubleAreaFor(state types.POIState, c types.Candle, ts time.Time) *types.POI {
	if state.Target.IsZero() {
		return nil
	}
	active, err := r.manager.AllActivePOIs(ts)
	if err != nil || len(active) == 0 {
		return nil
	}
	return strategy.DetectFTA(state.POI.Direction, c.Close.InexactFloat64(), state.Target.InexactFloat64(), flattenActive(active))
}

// handleAddons looks for a fresh local-timeframe POI touch plus a recent
// structure break to scale into an already-positioned trade.
func (r *Runner) handleAddons(c types.Candle, barIndex int, ts time.Time, structureEvents1m []types.StructureEvent) {
	ltf := addonLTF(r.cfg.Strategy.Targets.LocalTF)

	for _, state := range r.sm.PositionedStates() {
		if state.Target.IsZero() {
			continue
		}
		localPOIs, err := r.manager.POIsAt(ltf, ts)
		if err != nil {
			continue
		}
		candidates := strategy.FindAddonCandidates(state.POI.Direction, c.Close, state.Target, localPOIs)
		if len(candidates) == 0 {
			continue
		}

		sig := strategy.EvaluateAddon(state, candidates[0], c, barIndex, ts, structureEvents1m)
		if sig == nil {
			continue
		}
		r.signals = append(r.signals, *sig)

		equity := r.portfolio.Equity(c.Close)
		baseSize := strategy.CalculatePositionSize(equity, sig.Price, sig.Stop, r.syncMode, r.cfg.Strategy.Risk)
		size := baseSize.Mul(sig.SizeMult)

		parentID, _ := r.portfolio.MainTradeID(state.POIID)
		rec, ok, err := r.portfolio.Enter(state.POIID, sig.Direction, ts, barIndex, sig.Price, sig.Stop, sig.Target, size,
			r.syncMode, state.Timeframe, len(state.Confirmations), true, parentID)
		if !ok {
			reason := "rejected"
			if err != nil {
				reason = err.Error()
			}
			r.events.Emit(types.EventPositionRejected, ts, barIndex, map[string]any{
				"poiId": state.POIID, "reason": reason,
			})
			continue
		}
		r.events.Emit(types.EventAddOn, ts, barIndex, map[string]any{
			"poiId": state.POIID, "tradeId": rec.TradeID,
		})
	}
}
