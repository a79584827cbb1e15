package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

const addonSizeMult = 0.5
const addonStructureLookback = 10

// FindAddonCandidates selects same-direction, active/tested local POIs whose
// midpoint lies between current price and target, nearest to current price
// first.
func FindAddonCandidates(direction types.Direction, currentPrice, target decimal.Decimal, localPOIs []types.POI) []types.POI {
	candidates := make([]types.POI, 0, len(localPOIs))
	for _, p := range localPOIs {
		if p.Direction != direction {
			continue
		}
		if p.Status != types.POIActive && p.Status != types.POITested {
			continue
		}
		mid := p.Midpoint()
		if direction == types.Bullish {
			if mid.GreaterThan(currentPrice) && mid.LessThan(target) {
				candidates = append(candidates, p)
			}
		} else if mid.LessThan(currentPrice) && mid.GreaterThan(target) {
			candidates = append(candidates, p)
		}
	}

	if direction == types.Bullish {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Midpoint().LessThan(candidates[j].Midpoint()) })
	} else {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Midpoint().GreaterThan(candidates[j].Midpoint()) })
	}
	return candidates
}

// EvaluateAddon decides whether to add on to an already-open position at a
// candidate local POI: the main state must be POSITIONED or MANAGING, the
// candle must touch the candidate zone, and a structure break in trade
// direction must have occurred within the last addonStructureLookback bars.
func EvaluateAddon(mainState types.POIState, candidate types.POI, candle types.Candle, barIndex int, ts time.Time, structureEvents []types.StructureEvent) *types.Signal {
	if mainState.Phase != types.PhasePositioned && mainState.Phase != types.PhaseManaging {
		return nil
	}
	direction := mainState.POI.Direction

	var touches bool
	if direction == types.Bullish {
		touches = candle.Low.LessThanOrEqual(candidate.Top)
	} else {
		touches = candle.High.GreaterThanOrEqual(candidate.Bottom)
	}
	if !touches {
		return nil
	}

	hasStructure := false
	for _, ev := range structureEvents {
		if ev.Direction == direction && ev.BreakIndex <= barIndex && ev.BreakIndex >= barIndex-addonStructureLookback {
			hasStructure = true
			break
		}
	}
	if !hasStructure {
		return nil
	}

	return &types.Signal{
		Kind:      types.SignalAddOn,
		POIID:     mainState.POIID,
		Direction: direction,
		Time:      ts,
		BarIndex:  barIndex,
		Price:     candle.Close,
		Stop:      mainState.StopLoss,
		Target:    mainState.Target,
		SizeMult:  decimal.NewFromFloat(addonSizeMult),
		Reason:    fmt.Sprintf("add-on at %s", candidate.Midpoint().StringFixed(1)),
		Metadata: map[string]any{
			"barIndex":      barIndex,
			"addonPOITop":   candidate.Top,
			"addonPOIBottom": candidate.Bottom,
			"parentTradeId": mainState.POIID,
		},
	}
}

// ShouldAddonBreakeven reports whether an add-on leg has moved favorably
// enough (beyond a 3x commission cushion) to justify moving it to
// breakeven.
func ShouldAddonBreakeven(addonEntry, currentPrice decimal.Decimal, direction types.Direction, commissionPct decimal.Decimal) bool {
	adj := decimal.NewFromInt(3).Mul(commissionPct)
	if direction == types.Bullish {
		return currentPrice.GreaterThan(addonEntry.Mul(decimal.NewFromInt(1).Add(adj)))
	}
	return currentPrice.LessThan(addonEntry.Mul(decimal.NewFromInt(1).Sub(adj)))
}
