package strategy

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

var (
	targetFallbackUp   = decimal.NewFromFloat(1.03)
	targetFallbackDown = decimal.NewFromFloat(0.97)
)

// SelectTarget picks a target price for a trade: the nearest same-side
// active swing beyond current price in trade direction; failing that, the
// nearest opposing POI on the path; failing that, ±3% of price. swings
// should already be scoped to the sync-mode's target pool (primary TF for
// SYNC, local TF for DESYNC) by the caller.
func SelectTarget(direction types.Direction, currentPrice decimal.Decimal, activePOIs []types.POI, swings []types.Swing) decimal.Decimal {
	if direction == types.Bullish {
		candidates := make([]types.Swing, 0, len(swings))
		for _, s := range swings {
			if s.Status == types.SwingActive && s.Direction == types.Bullish && s.Price.GreaterThan(currentPrice) {
				candidates = append(candidates, s)
			}
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].Price.LessThan(candidates[j].Price) })
			return candidates[0].Price
		}

		opposing := make([]types.POI, 0, len(activePOIs))
		for _, p := range activePOIs {
			if p.Direction == types.Bearish && p.Bottom.GreaterThan(currentPrice) {
				opposing = append(opposing, p)
			}
		}
		if len(opposing) > 0 {
			sort.Slice(opposing, func(i, j int) bool { return opposing[i].Bottom.LessThan(opposing[j].Bottom) })
			return opposing[0].Bottom
		}

		return currentPrice.Mul(targetFallbackUp)
	}

	candidates := make([]types.Swing, 0, len(swings))
	for _, s := range swings {
		if s.Status == types.SwingActive && s.Direction == types.Bearish && s.Price.LessThan(currentPrice) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Price.GreaterThan(candidates[j].Price) })
		return candidates[0].Price
	}

	opposing := make([]types.POI, 0, len(activePOIs))
	for _, p := range activePOIs {
		if p.Direction == types.Bullish && p.Top.LessThan(currentPrice) {
			opposing = append(opposing, p)
		}
	}
	if len(opposing) > 0 {
		sort.Slice(opposing, func(i, j int) bool { return opposing[i].Top.GreaterThan(opposing[j].Top) })
		return opposing[0].Top
	}

	return currentPrice.Mul(targetFallbackDown)
}
