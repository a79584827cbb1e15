package strategy

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// FTADistance classifies how close a First Trouble Area is to current price
// relative to the price-to-target range.
type FTADistance string

const (
	FTAFar   FTADistance = "far"
	FTAClose FTADistance = "close"
)

// DetectFTA finds the nearest opposing-direction active POI lying between
// current price and target. For a long, candidates are bearish POIs with
// bottom > price and top < target, nearest by ascending bottom. Mirrored for
// a short. Only ACTIVE or TESTED POIs are eligible; nil if none qualify.
func DetectFTA(direction types.Direction, price, targetPrice float64, activePOIs []types.POI) *types.POI {
	candidates := make([]types.POI, 0, len(activePOIs))
	for _, p := range activePOIs {
		if p.Status != types.POIActive && p.Status != types.POITested {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	if direction == types.Bullish {
		inPath := make([]types.POI, 0, len(candidates))
		for _, p := range candidates {
			if p.Direction == types.Bearish && p.Bottom.InexactFloat64() > price && p.Top.InexactFloat64() < targetPrice {
				inPath = append(inPath, p)
			}
		}
		if len(inPath) == 0 {
			return nil
		}
		sort.Slice(inPath, func(i, j int) bool { return inPath[i].Bottom.LessThan(inPath[j].Bottom) })
		return &inPath[0]
	}

	inPath := make([]types.POI, 0, len(candidates))
	for _, p := range candidates {
		if p.Direction == types.Bullish && p.Top.InexactFloat64() < price && p.Bottom.InexactFloat64() > targetPrice {
			inPath = append(inPath, p)
		}
	}
	if len(inPath) == 0 {
		return nil
	}
	sort.Slice(inPath, func(i, j int) bool { return inPath[i].Top.GreaterThan(inPath[j].Top) })
	return &inPath[0]
}

// ClassifyFTADistance reports "close" if the FTA's midpoint lies within
// closeThresholdPct of the price-to-target range, else "far". A zero-width
// range always classifies as close.
func ClassifyFTADistance(fta types.POI, price, target, closeThresholdPct float64) FTADistance {
	totalRange := target - price
	if totalRange < 0 {
		totalRange = -totalRange
	}
	if totalRange == 0 {
		return FTAClose
	}
	mid := fta.Midpoint().InexactFloat64()
	offset := mid - price
	if offset < 0 {
		offset = -offset
	}
	if offset/totalRange <= closeThresholdPct {
		return FTAClose
	}
	return FTAFar
}

// CheckFTAInvalidation reports whether price has closed through the far side
// of the FTA in trade direction: long invalidates above FTA top, short below
// FTA bottom.
func CheckFTAInvalidation(fta types.POI, closePrice float64, direction types.Direction) bool {
	if direction == types.Bullish {
		return closePrice > fta.Top.InexactFloat64()
	}
	return closePrice < fta.Bottom.InexactFloat64()
}

// CheckFTAValidation reports whether the bar's wick reached the FTA zone but
// closed back outside it (a rejection): long reaches FTA bottom then closes
// below it, short reaches FTA top then closes above it.
func CheckFTAValidation(fta types.POI, high, low, closePrice float64, direction types.Direction) bool {
	if direction == types.Bullish {
		bottom := fta.Bottom.InexactFloat64()
		return high >= bottom && closePrice < bottom
	}
	top := fta.Top.InexactFloat64()
	return low <= top && closePrice > top
}

// ShouldEnterWithFTA is the entry gate driven by FTA presence and distance:
// no FTA or a far FTA permits entry; a close FTA blocks it.
func ShouldEnterWithFTA(fta *types.POI, classification FTADistance) (bool, string) {
	if fta == nil {
		return true, "no FTA, clear path to target"
	}
	if classification == FTAFar {
		return true, "FTA far, enter normally"
	}
	return false, "FTA close, wait for invalidation"
}
