// Package liquidity detects equal-high/low clusters and session extremes (C2).
//
// Grounded on original_source/concepts/liquidity.py's _cluster_levels,
// detect_session_levels, and detect_sweep.
package liquidity

import (
	"time"

	"github.com/atlas-desktop/trading-backend/internal/resample"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// DetectEqualLevels clusters swing highs into sell-liquidity-above levels and
// swing lows into buy-liquidity-below levels. Swings within rangePercent of
// each other (as a fraction of the first swing's price in the cluster) are
// greedily grouped; clusters with fewer than minTouches members are dropped.
func DetectEqualLevels(swings []types.Swing, rangePercent float64, minTouches int) []types.LiquidityLevel {
	var highs, lows []types.Swing
	for _, s := range swings {
		if s.Direction == types.Bullish {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}
	var out []types.LiquidityLevel
	out = append(out, clusterLevels(highs, types.Bullish, rangePercent, minTouches)...)
	out = append(out, clusterLevels(lows, types.Bearish, rangePercent, minTouches)...)
	return out
}

func clusterLevels(swings []types.Swing, direction types.Direction, rangePercent float64, minTouches int) []types.LiquidityLevel {
	if len(swings) < minTouches {
		return nil
	}
	rp := decimal.NewFromFloat(rangePercent)
	used := make([]bool, len(swings))
	var out []types.LiquidityLevel

	for i := range swings {
		if used[i] {
			continue
		}
		level := swings[i].Price
		threshold := level.Mul(rp).Abs()
		clusterPrices := []decimal.Decimal{level}
		clusterIndices := []int{swings[i].Index}
		used[i] = true

		for j := i + 1; j < len(swings); j++ {
			if used[j] {
				continue
			}
			diff := swings[j].Price.Sub(level).Abs()
			if diff.LessThanOrEqual(threshold) {
				clusterPrices = append(clusterPrices, swings[j].Price)
				clusterIndices = append(clusterIndices, swings[j].Index)
				used[j] = true
			}
		}

		if len(clusterPrices) >= minTouches {
			out = append(out, types.LiquidityLevel{
				Direction: direction,
				Level:     mean(clusterPrices),
				Count:     len(clusterPrices),
				Indices:   clusterIndices,
				Status:    types.LiquidityActive,
			})
		}
	}
	return out
}

func mean(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// SessionLevel is a single resampled session's high/low extreme.
type SessionLevel struct {
	PeriodStart time.Time
	High        decimal.Decimal
	Low         decimal.Decimal
}

// DetectSessionLevels resamples a 1m series to daily high/low extremes, one
// SessionLevel per UTC calendar day. It takes no bucket selector: weekly and
// monthly sessions are not computed (the strategy layer consumes daily
// session highs/lows, per spec.md §3's "Liquidity level" entity, which does
// not distinguish a weekly variant).
func DetectSessionLevels(candles []types.Candle) []SessionLevel {
	daily, err := resample.Resample(candles, types.TF1D)
	if err != nil {
		return nil
	}
	out := make([]SessionLevel, len(daily))
	for i, d := range daily {
		out[i] = SessionLevel{PeriodStart: d.Time, High: d.High, Low: d.Low}
	}
	return out
}

// DetectSweep reports whether the current candle sweeps a liquidity level:
// a wick trades past the level but the close remains on the origin side.
func DetectSweep(candleHigh, candleLow, candleClose, level decimal.Decimal, direction types.Direction) bool {
	if direction == types.Bullish {
		return candleHigh.GreaterThan(level) && candleClose.LessThanOrEqual(level)
	}
	return candleLow.LessThan(level) && candleClose.GreaterThanOrEqual(level)
}
