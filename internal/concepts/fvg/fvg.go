// Package fvg detects Fair Value Gaps and tracks their per-bar lifecycle (C2).
//
// Grounded on original_source/concepts/fvg.py's detect_fvg,
// update_fvg_status, and track_fvg_lifecycle.
package fvg

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// MitigationMode selects how an FVG transitions toward MITIGATED/INVERTED.
type MitigationMode string

const (
	ModeWick  MitigationMode = "wick"
	ModeClose MitigationMode = "close"
	ModeCE    MitigationMode = "ce"
	ModeFull  MitigationMode = "full"
)

// DetectConfig configures FVG detection.
type DetectConfig struct {
	MinGapPct       float64
	JoinConsecutive bool
}

// Detect finds 3-candle imbalances: a bullish FVG at i requires
// low[i] > high[i-2]; a bearish FVG requires high[i] < low[i-2]. Gaps
// smaller than MinGapPct of the closing price are dropped. When
// JoinConsecutive is set, adjacent same-direction FVGs whose zones overlap
// or touch are merged into one, keeping the earliest start and latest
// creation index.
func Detect(candles []types.Candle, cfg DetectConfig) []types.FVG {
	n := len(candles)
	if n < 3 {
		return nil
	}
	minGapPct := decimal.NewFromFloat(cfg.MinGapPct)

	var out []types.FVG
	for i := 2; i < n; i++ {
		c := candles[i]
		c2 := candles[i-2]

		if c.Low.GreaterThan(c2.High) {
			gapTop, gapBottom := c.Low, c2.High
			gapSize := gapTop.Sub(gapBottom)
			if gapSize.GreaterThan(minGapPct.Mul(c.Close)) {
				out = append(out, types.FVG{
					Direction:     types.Bullish,
					Top:           gapTop,
					Bottom:        gapBottom,
					StartIndex:    i - 2,
					CreationIndex: i,
					CreationTime:  c.Time,
					Status:        types.FVGFresh,
				})
			}
		}
		if c.High.LessThan(c2.Low) {
			gapTop, gapBottom := c2.Low, c.High
			gapSize := gapTop.Sub(gapBottom)
			if gapSize.GreaterThan(minGapPct.Mul(c.Close)) {
				out = append(out, types.FVG{
					Direction:     types.Bearish,
					Top:           gapTop,
					Bottom:        gapBottom,
					StartIndex:    i - 2,
					CreationIndex: i,
					CreationTime:  c.Time,
					Status:        types.FVGFresh,
				})
			}
		}
	}

	if cfg.JoinConsecutive && len(out) > 1 {
		out = joinConsecutive(out)
	}
	return out
}

func joinConsecutive(fvgs []types.FVG) []types.FVG {
	merged := []types.FVG{fvgs[0]}
	for i := 1; i < len(fvgs); i++ {
		row := fvgs[i]
		cur := &merged[len(merged)-1]
		if row.Direction == cur.Direction && zonesOverlap(cur.Bottom, cur.Top, row.Bottom, row.Top) {
			if row.Top.GreaterThan(cur.Top) {
				cur.Top = row.Top
			}
			if row.Bottom.LessThan(cur.Bottom) {
				cur.Bottom = row.Bottom
			}
			if row.StartIndex < cur.StartIndex {
				cur.StartIndex = row.StartIndex
			}
			cur.CreationIndex = row.CreationIndex
			cur.CreationTime = row.CreationTime
			continue
		}
		merged = append(merged, row)
	}
	return merged
}

func zonesOverlap(bot1, top1, bot2, top2 decimal.Decimal) bool {
	return bot1.LessThanOrEqual(top2) && bot2.LessThanOrEqual(top1)
}

// TrackLifecycle computes, for each FVG, the deterministic per-bar trace of
// its status from creation forward up to maxAgeBars, stopping early once a
// terminal status (MITIGATED or INVERTED) is reached.
func TrackLifecycle(candles []types.Candle, fvgs []types.FVG, mode MitigationMode, maxAgeBars int) []types.FVGLifecycle {
	n := len(candles)
	out := make([]types.FVGLifecycle, 0, len(fvgs))

	for _, f := range fvgs {
		mid := f.Midpoint()
		status := types.FVGFresh
		var deepest decimal.Decimal
		haveDeepest := false
		inversionIndex := -1

		limit := f.CreationIndex + maxAgeBars
		if limit >= n {
			limit = n - 1
		}
		endIndex := limit // default when the FVG is never touched again

		for pos := f.CreationIndex + 1; pos <= limit; pos++ {
			c := candles[pos]
			var touched bool
			if f.Direction == types.Bullish {
				touched = c.Low.LessThanOrEqual(f.Top)
			} else {
				touched = c.High.GreaterThanOrEqual(f.Bottom)
			}
			if !touched {
				continue
			}

			if f.Direction == types.Bullish {
				if !haveDeepest || c.Low.LessThan(deepest) {
					deepest = c.Low
					haveDeepest = true
				}
			} else {
				if !haveDeepest || c.High.GreaterThan(deepest) {
					deepest = c.High
					haveDeepest = true
				}
			}

			next, inverted, terminal := nextStatus(f.Direction, mode, status, f.Top, f.Bottom, mid, c)
			if rank(next) > rank(status) {
				status = next
			}
			if inverted {
				inversionIndex = pos
			}
			endIndex = pos
			if terminal {
				break
			}
		}

		out = append(out, types.FVGLifecycle{
			FVG:            f,
			DeepestPrice:   deepest,
			FinalStatus:    status,
			EndIndex:       endIndex,
			InversionIndex: inversionIndex,
		})
	}
	return out
}

// rank orders statuses so a lifecycle trace never regresses to a shallower
// fill depth bar-over-bar; MITIGATED/INVERTED always outrank everything.
func rank(s types.FVGStatus) int {
	switch s {
	case types.FVGFresh:
		return 0
	case types.FVGTested:
		return 1
	case types.FVGPartiallyFilled:
		return 2
	case types.FVGFullyFilled:
		return 3
	case types.FVGMitigated, types.FVGInverted:
		return 4
	}
	return -1
}

// nextStatus applies one bar of update_fvg_status's per-mode transition
// logic and reports whether the new status is terminal (MITIGATED/INVERTED).
func nextStatus(dir types.Direction, mode MitigationMode, status types.FVGStatus, top, bottom, mid decimal.Decimal, c types.Candle) (types.FVGStatus, bool, bool) {
	if status == types.FVGMitigated || status == types.FVGInverted {
		return status, false, true
	}

	if dir == types.Bullish {
		switch mode {
		case ModeWick:
			switch {
			case c.Low.LessThanOrEqual(bottom):
				return types.FVGFullyFilled, false, false
			case c.Low.LessThanOrEqual(mid):
				return types.FVGPartiallyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		case ModeClose:
			switch {
			case c.Close.LessThan(bottom):
				return types.FVGInverted, true, true
			case c.Close.LessThanOrEqual(mid):
				return types.FVGPartiallyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		case ModeCE:
			if c.Low.LessThanOrEqual(mid) {
				return types.FVGMitigated, false, true
			}
			return types.FVGTested, false, false
		case ModeFull:
			switch {
			case c.Close.LessThan(bottom):
				return types.FVGInverted, true, true
			case c.Low.LessThanOrEqual(bottom):
				return types.FVGFullyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		}
	} else {
		switch mode {
		case ModeWick:
			switch {
			case c.High.GreaterThanOrEqual(top):
				return types.FVGFullyFilled, false, false
			case c.High.GreaterThanOrEqual(mid):
				return types.FVGPartiallyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		case ModeClose:
			switch {
			case c.Close.GreaterThan(top):
				return types.FVGInverted, true, true
			case c.Close.GreaterThanOrEqual(mid):
				return types.FVGPartiallyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		case ModeCE:
			if c.High.GreaterThanOrEqual(mid) {
				return types.FVGMitigated, false, true
			}
			return types.FVGTested, false, false
		case ModeFull:
			switch {
			case c.Close.GreaterThan(top):
				return types.FVGInverted, true, true
			case c.High.GreaterThanOrEqual(top):
				return types.FVGFullyFilled, false, false
			default:
				return types.FVGTested, false, false
			}
		}
	}
	return status, false, false
}
