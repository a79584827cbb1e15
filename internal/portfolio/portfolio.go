// Package portfolio implements the backtester's execution and bookkeeping
// layer (C8): slippage, commission, position-cap enforcement, the equity
// curve, MFE/MAE tracking, and the trade-log lifecycle.
//
// Grounded on original_source/engine/trade_log.py's TradeLog/TradeRecord
// and the teacher's internal/backtester/portfolio.go for the Go
// struct/mutex/decimal idiom: a guarded struct exposing Buy/Sell-shaped
// entry points over a decimal cash ledger.
package portfolio

import (
	"errors"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMaxConcurrentPositions is the rejection reason for a fresh entry when
// the open poi-id count already equals the configured cap.
var ErrMaxConcurrentPositions = errors.New("portfolio: max_concurrent_positions reached")

// ErrZeroSize is the rejection reason for an entry sized to zero.
var ErrZeroSize = errors.New("portfolio: position size is zero")

var twoCommissions = decimal.NewFromInt(2)

// Portfolio owns the cash ledger and every trade's lifecycle record. It is
// guarded by a mutex in the teacher's idiom even though the backtest loop
// that drives it is single-threaded.
type Portfolio struct {
	mu sync.Mutex

	cash          decimal.Decimal
	initialCash   decimal.Decimal
	commissionPct decimal.Decimal
	slippagePct   decimal.Decimal
	maxConcurrent int

	trades    []types.TradeRecord
	openByPOI map[string][]int // poi-id -> indices into trades, still open

	equityCurve []types.EquityPoint
}

// New constructs a portfolio with a pre-sized equity curve of the given bar
// count.
func New(initialCapital, commissionPct, slippagePct decimal.Decimal, maxConcurrentPositions, barCount int) *Portfolio {
	return &Portfolio{
		cash:          initialCapital,
		initialCash:   initialCapital,
		commissionPct: commissionPct,
		slippagePct:   slippagePct,
		maxConcurrent: maxConcurrentPositions,
		openByPOI:     make(map[string][]int),
		equityCurve:   make([]types.EquityPoint, barCount),
	}
}

// ApplySlippage adjusts a signal price against the trader: long entries and
// short exits move up, short entries and long exits move down.
func ApplySlippage(price decimal.Decimal, direction types.Direction, isEntry bool, slippagePct decimal.Decimal) decimal.Decimal {
	adj := decimal.NewFromInt(1)
	isLong := direction == types.Bullish
	worse := isLong == isEntry // long-entry or short-exit -> price moves up
	if worse {
		adj = adj.Add(slippagePct)
	} else {
		adj = adj.Sub(slippagePct)
	}
	return price.Mul(adj)
}

func commission(price, size, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(size).Mul(pct)
}

// Enter opens a new trade leg for poiID. A non-add-on entry is rejected if
// the number of distinct open poi-ids already equals maxConcurrentPositions,
// or if size is zero; add-ons bypass the position cap. Returns the opened
// record, whether it was accepted, and a rejection reason on failure.
func (p *Portfolio) Enter(poiID string, direction types.Direction, ts time.Time, barIndex int, signalPrice, stop, target, size decimal.Decimal, syncMode types.SyncMode, tf types.Timeframe, confirmationCount int, isAddOn bool, parentTradeID string) (types.TradeRecord, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if size.IsZero() || size.IsNegative() {
		return types.TradeRecord{}, false, ErrZeroSize
	}
	if !isAddOn {
		if _, alreadyOpen := p.openByPOI[poiID]; !alreadyOpen {
			if p.distinctOpenPOIsLocked() >= p.maxConcurrent {
				return types.TradeRecord{}, false, ErrMaxConcurrentPositions
			}
		}
	}

	fill := ApplySlippage(signalPrice, direction, true, p.slippagePct)
	comm := commission(fill, size, p.commissionPct)
	p.cash = p.cash.Sub(comm)

	record := types.TradeRecord{
		TradeID:           uuid.NewString(),
		POIID:             poiID,
		Direction:         direction,
		EntryTime:         ts,
		EntryBarIndex:     barIndex,
		EntryPrice:        fill,
		EntrySignalPrice:  signalPrice,
		PositionSize:      size,
		CommissionEntry:   comm,
		StopLoss:          stop,
		Target:            target,
		SyncMode:          syncMode,
		Timeframe:         tf,
		ConfirmationCount: confirmationCount,
		IsAddOn:           isAddOn,
		ParentTradeID:     parentTradeID,
		Open:              true,
	}

	p.trades = append(p.trades, record)
	idx := len(p.trades) - 1
	p.openByPOI[poiID] = append(p.openByPOI[poiID], idx)

	return record, true, nil
}

// distinctOpenPOIsLocked counts poi-ids with at least one open leg. Caller
// must hold the mutex.
func (p *Portfolio) distinctOpenPOIsLocked() int {
	n := 0
	for _, idxs := range p.openByPOI {
		if len(idxs) > 0 {
			n++
		}
	}
	return n
}

// Exit closes every open leg (the main position plus any add-ons) under
// poiID at exitSignalPrice, applying slippage and exit commission to each,
// and returns the closed records.
func (p *Portfolio) Exit(poiID string, ts time.Time, barIndex int, exitSignalPrice decimal.Decimal, reason types.ExitReason) []types.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	idxs := p.openByPOI[poiID]
	if len(idxs) == 0 {
		return nil
	}

	closed := make([]types.TradeRecord, 0, len(idxs))
	for _, idx := range idxs {
		closed = append(closed, p.closeLocked(idx, ts, barIndex, exitSignalPrice, reason))
	}
	delete(p.openByPOI, poiID)
	return closed
}

func (p *Portfolio) closeLocked(idx int, ts time.Time, barIndex int, exitSignalPrice decimal.Decimal, reason types.ExitReason) types.TradeRecord {
	rec := &p.trades[idx]
	fill := ApplySlippage(exitSignalPrice, rec.Direction, false, p.slippagePct)
	comm := commission(fill, rec.PositionSize, p.commissionPct)

	rec.ExitTime = ts
	rec.ExitPrice = fill
	rec.ExitSignalPrice = exitSignalPrice
	rec.ExitReason = reason
	rec.CommissionExit = comm
	rec.DurationBars = barIndex - rec.EntryBarIndex

	gross := decimal.NewFromInt(int64(rec.Direction)).Mul(fill.Sub(rec.EntryPrice)).Mul(rec.PositionSize)
	totalCommission := rec.CommissionEntry.Add(comm)
	realized := gross.Sub(totalCommission)

	rec.GrossPnL = gross
	rec.RealizedPnL = realized
	rec.Outcome = classifyOutcome(realized, totalCommission)
	rec.RMultiple = computeRMultiple(rec.EntryPrice, fill, rec.StopLoss, rec.Direction)
	rec.Open = false

	p.cash = p.cash.Add(gross).Sub(comm)

	return *rec
}

// classifyOutcome labels a closed trade WIN/LOSS/BREAKEVEN: breakeven when
// the realized P&L sits within 2x total commission of zero.
func classifyOutcome(realized, totalCommission decimal.Decimal) types.TradeOutcome {
	threshold := totalCommission.Mul(twoCommissions)
	if threshold.IsZero() {
		threshold = decimal.NewFromFloat(0.01)
	}
	if realized.Abs().LessThanOrEqual(threshold) {
		return types.OutcomeBreakeven
	}
	if realized.IsPositive() {
		return types.OutcomeWin
	}
	return types.OutcomeLoss
}

// computeRMultiple reports how many R's a closed trade realized relative to
// its original stop distance. Zero when the stop sat on the wrong side of
// entry.
func computeRMultiple(entry, exit, stop decimal.Decimal, direction types.Direction) float64 {
	var risk, reward decimal.Decimal
	if direction == types.Bullish {
		risk = entry.Sub(stop)
		reward = exit.Sub(entry)
	} else {
		risk = stop.Sub(entry)
		reward = entry.Sub(exit)
	}
	if risk.Sign() <= 0 {
		return 0
	}
	r, _ := reward.Div(risk).Float64()
	return r
}

// MoveStop updates the stop-loss on every open leg of poiID (used by
// MOVE_TO_BE signals).
func (p *Portfolio) MoveStop(poiID string, newStop decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, idx := range p.openByPOI[poiID] {
		p.trades[idx].StopLoss = newStop
	}
}

// IsOpen reports whether poiID currently has at least one open leg.
func (p *Portfolio) IsOpen(poiID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.openByPOI[poiID]) > 0
}

// OpenPOICount returns the number of distinct poi-ids with an open position.
func (p *Portfolio) OpenPOICount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.distinctOpenPOIsLocked()
}

// MainTradeID returns the trade id of the first (non-add-on) open leg under
// poiID, used to stamp an add-on's parent_trade_id.
func (p *Portfolio) MainTradeID(poiID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, idx := range p.openByPOI[poiID] {
		if !p.trades[idx].IsAddOn {
			return p.trades[idx].TradeID, true
		}
	}
	return "", false
}

// Equity returns cash plus the mark-to-market value of every open leg at
// lastClose.
func (p *Portfolio) Equity(lastClose decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equityLocked(lastClose)
}

func (p *Portfolio) equityLocked(lastClose decimal.Decimal) decimal.Decimal {
	equity := p.cash
	for _, rec := range p.trades {
		if !rec.Open {
			continue
		}
		dirMult := decimal.NewFromInt(int64(rec.Direction))
		equity = equity.Add(dirMult.Mul(lastClose.Sub(rec.EntryPrice)).Mul(rec.PositionSize))
	}
	return equity
}

// MarkToMarket updates MFE/MAE for every open leg and records the bar's
// equity sample at barIndex.
func (p *Portfolio) MarkToMarket(barIndex int, ts time.Time, high, low, closePrice decimal.Decimal) types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.trades {
		rec := &p.trades[i]
		if !rec.Open {
			continue
		}
		var favorable, adverse decimal.Decimal
		if rec.Direction == types.Bullish {
			favorable = high.Sub(rec.EntryPrice)
			adverse = rec.EntryPrice.Sub(low)
		} else {
			favorable = rec.EntryPrice.Sub(low)
			adverse = high.Sub(rec.EntryPrice)
		}
		rec.MaxFavorableExcursion = utils.MaxDecimal(favorable, rec.MaxFavorableExcursion)
		rec.MaxAdverseExcursion = utils.MaxDecimal(adverse, rec.MaxAdverseExcursion)
	}

	point := types.EquityPoint{Time: ts, Equity: p.equityLocked(closePrice), Valid: true}
	if barIndex >= 0 && barIndex < len(p.equityCurve) {
		p.equityCurve[barIndex] = point
	}
	return point
}

// CloseAllAtEndOfData closes every remaining open leg at the final close
// price with ReasonEndOfData.
func (p *Portfolio) CloseAllAtEndOfData(ts time.Time, barIndex int, closePrice decimal.Decimal) []types.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var closed []types.TradeRecord
	for poiID, idxs := range p.openByPOI {
		for _, idx := range idxs {
			closed = append(closed, p.closeLocked(idx, ts, barIndex, closePrice, types.ReasonEndOfData))
		}
		delete(p.openByPOI, poiID)
	}
	return closed
}

// Trades returns every recorded trade, open and closed, in creation order.
func (p *Portfolio) Trades() []types.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.TradeRecord, len(p.trades))
	copy(out, p.trades)
	return out
}

// EquityCurve returns the bar-indexed equity samples recorded so far.
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EquityPoint, len(p.equityCurve))
	copy(out, p.equityCurve)
	return out
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}
