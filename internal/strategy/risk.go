package strategy

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// StopLossMethod names one of the four stop-loss placement strategies.
type StopLossMethod string

const (
	StopBehindPOI       StopLossMethod = "behind_poi"
	StopBehindFVG        StopLossMethod = "behind_fvg"
	StopBehindCVB        StopLossMethod = "behind_cvb"
	StopBehindLiquidity  StopLossMethod = "behind_liquidity"
)

var stopBuffer = decimal.NewFromFloat(0.0005)

// CalculateStopLoss computes a stop-loss level for the given POI and
// direction using method, falling back to behind-POI placement when the
// chosen method has no qualifying nearby data.
func CalculateStopLoss(poi types.POI, direction types.Direction, nearbyFVGs []types.FVG, nearbyLiquidity []types.LiquidityLevel, method StopLossMethod) decimal.Decimal {
	buffer := poi.Midpoint().Mul(stopBuffer)

	behindPOI := func() decimal.Decimal {
		if direction == types.Bullish {
			return poi.Bottom.Sub(buffer)
		}
		return poi.Top.Add(buffer)
	}

	behindFVG := func() (decimal.Decimal, bool) {
		var best decimal.Decimal
		found := false
		for _, f := range nearbyFVGs {
			if f.Direction != direction {
				continue
			}
			if !found {
				best, found = f.Bottom, true
				if direction == types.Bearish {
					best = f.Top
				}
				continue
			}
			if direction == types.Bullish && f.Bottom.LessThan(best) {
				best = f.Bottom
			}
			if direction == types.Bearish && f.Top.GreaterThan(best) {
				best = f.Top
			}
		}
		if !found {
			return decimal.Zero, false
		}
		if direction == types.Bullish {
			return best.Sub(buffer), true
		}
		return best.Add(buffer), true
	}

	behindCVB := func() (decimal.Decimal, bool) {
		var best decimal.Decimal
		found := false
		for _, f := range nearbyFVGs {
			if f.Direction != direction {
				continue
			}
			mid := f.Midpoint()
			if !found {
				best, found = mid, true
				continue
			}
			if direction == types.Bullish && mid.LessThan(best) {
				best = mid
			}
			if direction == types.Bearish && mid.GreaterThan(best) {
				best = mid
			}
		}
		if !found {
			return decimal.Zero, false
		}
		if direction == types.Bullish {
			return best.Sub(buffer), true
		}
		return best.Add(buffer), true
	}

	behindLiquidity := func() (decimal.Decimal, bool) {
		targetDir := direction.Opposite()
		var best decimal.Decimal
		found := false
		for _, l := range nearbyLiquidity {
			if l.Direction != targetDir {
				continue
			}
			if !found {
				best, found = l.Level, true
				continue
			}
			if direction == types.Bullish && l.Level.LessThan(best) {
				best = l.Level
			}
			if direction == types.Bearish && l.Level.GreaterThan(best) {
				best = l.Level
			}
		}
		if !found {
			return decimal.Zero, false
		}
		if direction == types.Bullish {
			return best.Sub(buffer), true
		}
		return best.Add(buffer), true
	}

	switch method {
	case StopBehindFVG:
		if v, ok := behindFVG(); ok {
			return v
		}
	case StopBehindCVB:
		if v, ok := behindCVB(); ok {
			return v
		}
	case StopBehindLiquidity:
		if v, ok := behindLiquidity(); ok {
			return v
		}
	}
	return behindPOI()
}

// CalculatePositionSize sizes a position from equity and a fixed fraction
// risked per trade, scaled by the sync-mode multiplier.
func CalculatePositionSize(equity, entry, stop decimal.Decimal, sync types.SyncMode, risk types.RiskConfig) decimal.Decimal {
	riskAmount := equity.Mul(decimal.NewFromFloat(risk.MaxRiskPerTrade))
	distance := entry.Sub(stop).Abs()
	if distance.IsZero() {
		return decimal.Zero
	}
	mult := decimal.NewFromFloat(PositionSizeMultiplier(sync, risk))
	return riskAmount.Div(distance).Mul(mult)
}

// ValidateRisk reports whether the trade's reward-to-risk ratio meets the
// minimum, and what that ratio actually is. A non-positive risk (stop on
// the wrong side of entry) always fails.
func ValidateRisk(entry, stop, target decimal.Decimal, direction types.Direction, minRR float64) (bool, float64) {
	var reward, risk decimal.Decimal
	if direction == types.Bullish {
		reward = target.Sub(entry)
		risk = entry.Sub(stop)
	} else {
		reward = entry.Sub(target)
		risk = stop.Sub(entry)
	}
	if risk.Sign() <= 0 {
		return false, 0
	}
	rr, _ := reward.Div(risk).Float64()
	return rr >= minRR, rr
}

var breakevenCommissionMult = decimal.NewFromInt(2)

// CalculateBreakevenLevel returns the entry price adjusted to cover the
// round-trip commission cost, so closing there nets to zero.
func CalculateBreakevenLevel(entry decimal.Decimal, direction types.Direction, commissionPct decimal.Decimal) decimal.Decimal {
	adj := breakevenCommissionMult.Mul(commissionPct)
	if direction == types.Bullish {
		return entry.Mul(decimal.NewFromInt(1).Add(adj))
	}
	return entry.Mul(decimal.NewFromInt(1).Sub(adj))
}
