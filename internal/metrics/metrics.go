// Package metrics computes the performance summary of a completed backtest
// run (C10): return/drawdown/risk-adjusted ratios from the equity curve,
// trade statistics from the closed trade table, a per-sync-mode breakdown,
// and monthly returns.
//
// Grounded on original_source/engine/metrics.py's compute_* family, reshaped
// from numpy reductions onto sequential decimal/float64 folds per spec.md
// §9's determinism note (no parallel reduction inside a run).
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// defaultBarsPerYear mirrors original_source/engine/metrics.py's default of
// 252 trading days of 390 one-minute bars.
const defaultBarsPerYear = 252 * 390

// Compute assembles the full Metrics record from a run's closed trades,
// bar-indexed equity curve, backtest config, and time index.
func Compute(trades []types.TradeRecord, equityCurve []types.EquityPoint, cfg types.BacktestConfig, timeIndex []time.Time) types.Metrics {
	barsPerYear := cfg.BarsPerYear
	if barsPerYear <= 0 {
		barsPerYear = defaultBarsPerYear
	}

	values := validEquity(equityCurve)

	totalReturn, cagr := returnMetrics(values, cfg.InitialCapital, barsPerYear)
	ddSeries, maxDD, maxDDDuration := drawdown(values)
	sharpe := sharpeRatio(values, barsPerYear)
	sortino := sortinoRatio(values, barsPerYear)
	calmar := 0.0
	if maxDD != 0 {
		calmar = cagr / maxDD
	}

	closed := closedTrades(trades)
	overall := tradeStats(closed)

	bySync := make(map[types.SyncMode]types.TradeStats)
	byMode := make(map[types.SyncMode][]types.TradeRecord)
	for _, t := range closed {
		byMode[t.SyncMode] = append(byMode[t.SyncMode], t)
	}
	for mode, ts := range byMode {
		bySync[mode] = tradeStats(ts)
	}

	monthly := monthlyReturns(equityCurve, timeIndex, cfg.InitialCapital)

	return types.Metrics{
		TotalReturn:         totalReturn,
		CAGR:                cagr,
		MaxDrawdown:         maxDD,
		MaxDrawdownDuration: maxDDDuration,
		Sharpe:              sharpe,
		Sortino:             sortino,
		Calmar:              calmar,
		DrawdownSeries:      ddSeries,
		Overall:             overall,
		BySyncMode:          bySync,
		MonthlyReturns:      monthly,
	}
}

// validEquity extracts the Valid equity samples, in bar order, as float64.
func validEquity(curve []types.EquityPoint) []float64 {
	values := make([]float64, 0, len(curve))
	for _, p := range curve {
		if !p.Valid {
			continue
		}
		f, _ := p.Equity.Float64()
		values = append(values, f)
	}
	return values
}

func returnMetrics(values []float64, initialCapital float64, barsPerYear int) (totalReturn, cagr float64) {
	if len(values) == 0 || initialCapital <= 0 {
		return 0, 0
	}
	final := values[len(values)-1]
	totalReturn = (final - initialCapital) / initialCapital

	years := float64(len(values)) / float64(barsPerYear)
	if years < 0.001 || final <= 0 {
		return totalReturn, 0
	}
	cagr = math.Pow(final/initialCapital, 1/years) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		cagr = 0
	}
	return totalReturn, cagr
}

// drawdown returns the per-sample drawdown series, the max drawdown
// (positive magnitude), and the longest streak (in samples) spent below the
// running peak.
func drawdown(values []float64) ([]float64, float64, int) {
	if len(values) < 2 {
		return nil, 0, 0
	}
	dd := make([]float64, len(values))
	peak := values[0]
	maxDD := 0.0
	maxDuration, curDuration := 0, 0

	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd[i] = (v - peak) / peak
		}
		if dd[i] < -maxDD {
			maxDD = -dd[i]
		}
		if v < peak {
			curDuration++
			if curDuration > maxDuration {
				maxDuration = curDuration
			}
		} else {
			curDuration = 0
		}
	}
	return dd, maxDD, maxDuration
}

func barReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev computes the sample standard deviation (Bessel's correction).
func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func sharpeRatio(values []float64, barsPerYear int) float64 {
	returns := barReturns(values)
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(float64(barsPerYear))
}

func sortinoRatio(values []float64, barsPerYear int) float64 {
	returns := barReturns(values)
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	sd := stddev(downside, mean(downside))
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(float64(barsPerYear))
}

func closedTrades(trades []types.TradeRecord) []types.TradeRecord {
	out := make([]types.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if !t.Open {
			out = append(out, t)
		}
	}
	return out
}

func tradeStats(trades []types.TradeRecord) types.TradeStats {
	var stats types.TradeStats
	total := len(trades)
	stats.TotalTrades = total
	if total == 0 {
		return stats
	}

	var sumR, sumWinR, sumLossR float64
	var grossProfit, grossLoss float64
	var sumDuration float64

	for _, t := range trades {
		sumR += t.RMultiple
		sumDuration += float64(t.DurationBars)

		realized, _ := t.RealizedPnL.Float64()

		switch t.Outcome {
		case types.OutcomeWin:
			stats.Wins++
			sumWinR += t.RMultiple
			grossProfit += realized
		case types.OutcomeLoss:
			stats.Losses++
			sumLossR += t.RMultiple
			grossLoss += -realized
		case types.OutcomeBreakeven:
			stats.Breakevens++
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(total)
	stats.AvgR = sumR / float64(total)
	if stats.Wins > 0 {
		stats.AvgRWin = sumWinR / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgRLoss = sumLossR / float64(stats.Losses)
	}
	if grossLoss > 0 {
		stats.ProfitFactor = grossProfit / grossLoss
	}

	winRateFrac := float64(stats.Wins) / float64(total)
	lossRateFrac := float64(stats.Losses) / float64(total)
	stats.Expectancy = winRateFrac*stats.AvgRWin + lossRateFrac*stats.AvgRLoss

	stats.AvgDurationBars = sumDuration / float64(total)

	return stats
}

// monthlyReturns resamples the equity curve to month-end samples and
// returns the pct-change of consecutive month-end equities, the initial
// capital standing in for the month before the first sample.
func monthlyReturns(curve []types.EquityPoint, timeIndex []time.Time, initialCapital float64) []types.MonthlyReturn {
	if len(curve) == 0 || len(timeIndex) != len(curve) {
		return nil
	}

	type monthKey struct {
		year  int
		month time.Month
	}
	lastOfMonth := make(map[monthKey]int)
	var order []monthKey

	for i, p := range curve {
		if !p.Valid {
			continue
		}
		k := monthKey{timeIndex[i].Year(), timeIndex[i].Month()}
		if _, seen := lastOfMonth[k]; !seen {
			order = append(order, k)
		}
		lastOfMonth[k] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].month < order[j].month
	})

	out := make([]types.MonthlyReturn, 0, len(order))
	prev := initialCapital
	for _, k := range order {
		idx := lastOfMonth[k]
		end, _ := curve[idx].Equity.Float64()
		if prev == 0 {
			continue
		}
		out = append(out, types.MonthlyReturn{
			Month:  time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC),
			Return: (end - prev) / prev,
		})
		prev = end
	}
	return out
}
