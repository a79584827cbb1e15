// Package confirm implements the 8-kind confirmation catalog and the
// collection rules that govern how a POI accumulates evidence before a
// strategy decision is allowed to act on it (C5).
//
// Grounded on original_source/strategy/confirmations.py's check_* family
// and collect_confirmations, with the additional-cBOS gate's prior-break
// check restricted to the pre-bar existing list per spec.md §9's open
// question 4 (the source inspects the running accumulator mid-bar instead).
package confirm

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

var activeFVGStatuses = map[types.FVGStatus]bool{
	types.FVGFresh:           true,
	types.FVGTested:          true,
	types.FVGPartiallyFilled: true,
}

// POIZone is the minimal POI shape confirmation checkers act on.
type POIZone struct {
	Direction types.Direction
	Top       decimal.Decimal
	Bottom    decimal.Decimal
	Midpoint  decimal.Decimal
}

// Bar bundles one candle with its artifact neighborhood for the checker
// functions.
type Bar struct {
	Candle        types.Candle
	Index         int
	NearbyFVGs    []types.FVG
	FVGLifecycle  []types.FVGLifecycle
	Liquidity     []types.LiquidityLevel
	Structure     []types.StructureEvent
}

func checkPOITap(b Bar, poi POIZone) bool {
	if poi.Direction == types.Bullish {
		return b.Candle.Low.LessThanOrEqual(poi.Top)
	}
	return b.Candle.High.GreaterThanOrEqual(poi.Bottom)
}

func checkLiquiditySweep(b Bar, poi POIZone) (map[string]any, bool) {
	targetDir := poi.Direction.Opposite()
	for _, l := range b.Liquidity {
		if l.Direction != targetDir || l.Status != types.LiquidityActive {
			continue
		}
		if targetDir == types.Bearish {
			if b.Candle.Low.LessThan(l.Level) && b.Candle.Close.GreaterThanOrEqual(l.Level) {
				return map[string]any{"level": l.Level, "direction": targetDir}, true
			}
		} else {
			if b.Candle.High.GreaterThan(l.Level) && b.Candle.Close.LessThanOrEqual(l.Level) {
				return map[string]any{"level": l.Level, "direction": targetDir}, true
			}
		}
	}
	return nil, false
}

func checkFVGInversion(b Bar, poi POIZone) (map[string]any, bool) {
	opposing := poi.Direction.Opposite()
	for _, lc := range b.FVGLifecycle {
		if lc.InversionIndex == b.Index && lc.FVG.Direction == opposing {
			return map[string]any{
				"direction": lc.FVG.Direction, "top": lc.FVG.Top, "bottom": lc.FVG.Bottom,
				"midpoint": lc.FVG.Midpoint(), "inversionIndex": lc.InversionIndex,
			}, true
		}
	}
	return nil, false
}

func checkInversionTest(b Bar, poi POIZone) (map[string]any, bool) {
	opposing := poi.Direction.Opposite()
	for _, lc := range b.FVGLifecycle {
		if lc.FinalStatus != types.FVGInverted || lc.InversionIndex < 0 || lc.FVG.Direction != opposing {
			continue
		}
		if poi.Direction == types.Bullish {
			if b.Candle.Low.LessThanOrEqual(lc.FVG.Top) {
				return map[string]any{
					"direction": lc.FVG.Direction, "top": lc.FVG.Top, "bottom": lc.FVG.Bottom,
					"midpoint": lc.FVG.Midpoint(), "inversionIndex": lc.InversionIndex,
				}, true
			}
		} else {
			if b.Candle.High.GreaterThanOrEqual(lc.FVG.Bottom) {
				return map[string]any{
					"direction": lc.FVG.Direction, "top": lc.FVG.Top, "bottom": lc.FVG.Bottom,
					"midpoint": lc.FVG.Midpoint(), "inversionIndex": lc.InversionIndex,
				}, true
			}
		}
	}
	return nil, false
}

func checkStructureBreak(b Bar, poi POIZone) (map[string]any, bool) {
	for _, ev := range b.Structure {
		if ev.BreakIndex == b.Index && ev.Direction == poi.Direction {
			return map[string]any{"type": ev.Kind, "direction": ev.Direction, "brokenLevel": ev.Level}, true
		}
	}
	return nil, false
}

func checkFVGWickReaction(b Bar, poi POIZone) (map[string]any, bool) {
	for _, f := range b.NearbyFVGs {
		if !activeFVGStatuses[f.Status] || f.Direction != poi.Direction {
			continue
		}
		mid := f.Midpoint()
		if poi.Direction == types.Bullish {
			bodyLow := decimal.Min(b.Candle.Open, b.Candle.Close)
			lowerWick := bodyLow.Sub(b.Candle.Low)
			if b.Candle.Low.LessThanOrEqual(f.Top) && b.Candle.Close.GreaterThan(mid) && lowerWick.GreaterThan(decimal.Zero) {
				return map[string]any{"direction": f.Direction, "top": f.Top, "bottom": f.Bottom, "midpoint": mid, "wickSize": lowerWick}, true
			}
		} else {
			bodyHigh := decimal.Max(b.Candle.Open, b.Candle.Close)
			upperWick := b.Candle.High.Sub(bodyHigh)
			if b.Candle.High.GreaterThanOrEqual(f.Bottom) && b.Candle.Close.LessThan(mid) && upperWick.GreaterThan(decimal.Zero) {
				return map[string]any{"direction": f.Direction, "top": f.Top, "bottom": f.Bottom, "midpoint": mid, "wickSize": upperWick}, true
			}
		}
	}
	return nil, false
}

var cvbTolerance = decimal.NewFromFloat(0.001)

func checkCVBTest(b Bar, poi POIZone) (map[string]any, bool) {
	one := decimal.NewFromInt(1)
	for _, f := range b.NearbyFVGs {
		if !activeFVGStatuses[f.Status] || f.Direction != poi.Direction {
			continue
		}
		mid := f.Midpoint()
		if poi.Direction == types.Bullish {
			if b.Candle.Low.LessThanOrEqual(mid.Mul(one.Add(cvbTolerance))) {
				return map[string]any{"direction": f.Direction, "top": f.Top, "bottom": f.Bottom, "midpoint": mid}, true
			}
		} else {
			if b.Candle.High.GreaterThanOrEqual(mid.Mul(one.Sub(cvbTolerance))) {
				return map[string]any{"direction": f.Direction, "top": f.Top, "bottom": f.Bottom, "midpoint": mid}, true
			}
		}
	}
	return nil, false
}

func checkAdditionalCBOS(b Bar, poi POIZone, existing []types.Confirmation) (map[string]any, bool) {
	hasPriorBreak := false
	for _, c := range existing {
		if c.Kind == types.ConfirmStructureBreak {
			hasPriorBreak = true
			break
		}
	}
	if !hasPriorBreak {
		return nil, false
	}
	for _, ev := range b.Structure {
		if ev.BreakIndex == b.Index && ev.Direction == poi.Direction && ev.Kind == types.CBOS {
			return map[string]any{"type": ev.Kind, "direction": ev.Direction, "brokenLevel": ev.Level}, true
		}
	}
	return nil, false
}

func alreadyCounted(confirms []types.Confirmation, kind types.ConfirmationKind, barIndex int) bool {
	for _, c := range confirms {
		if c.Kind == kind && c.BarIndex == barIndex {
			return true
		}
	}
	return false
}

// Collect evaluates all 8 checkers in their specified order against one
// bar and returns a new confirmation list (the input is never mutated).
// Kind 6 (FVG_WICK_REACTION) only fires once existing already holds ≥ 5
// confirmations; kind 8's prior-break check inspects existing only, never
// any confirmation appended earlier within this same call.
func Collect(existing []types.Confirmation, b Bar, poi POIZone, ts time.Time, maxCount int) []types.Confirmation {
	confirms := make([]types.Confirmation, len(existing))
	copy(confirms, existing)

	add := func(kind types.ConfirmationKind, details map[string]any) {
		if len(confirms) >= maxCount {
			return
		}
		if alreadyCounted(confirms, kind, b.Index) {
			return
		}
		confirms = append(confirms, types.Confirmation{Kind: kind, Time: ts, BarIndex: b.Index, Details: details})
	}

	if checkPOITap(b, poi) {
		add(types.ConfirmPOITap, nil)
	}
	if d, ok := checkLiquiditySweep(b, poi); ok {
		add(types.ConfirmLiquiditySweep, d)
	}
	if d, ok := checkFVGInversion(b, poi); ok {
		add(types.ConfirmFVGInversion, d)
	}
	if d, ok := checkInversionTest(b, poi); ok {
		add(types.ConfirmInversionTest, d)
	}
	if d, ok := checkStructureBreak(b, poi); ok {
		add(types.ConfirmStructureBreak, d)
	}
	if len(existing) >= 5 {
		if d, ok := checkFVGWickReaction(b, poi); ok {
			add(types.ConfirmFVGWickReaction, d)
		}
	}
	if d, ok := checkCVBTest(b, poi); ok {
		add(types.ConfirmCVBTest, d)
	}
	if d, ok := checkAdditionalCBOS(b, poi, existing); ok {
		add(types.ConfirmAdditionalCBOS, d)
	}
	return confirms
}

// IsReady reports whether the minimum confirmation threshold is met.
func IsReady(confirms []types.Confirmation, minCount int) bool {
	return len(confirms) >= minCount
}

var fvgRelated = map[types.ConfirmationKind]bool{
	types.ConfirmFVGInversion:    true,
	types.ConfirmInversionTest:   true,
	types.ConfirmFVGWickReaction: true,
}

var structuralKinds = map[types.ConfirmationKind]bool{
	types.ConfirmStructureBreak:   true,
	types.ConfirmAdditionalCBOS:   true,
}

// Has5thConfirmTrap reports whether price has left the POI structurally
// without ever retouching an FVG: ≥ 5 confirmations, none of
// {FVG_INVERSION, INVERSION_TEST, FVG_WICK_REACTION}, and the last
// confirmation is STRUCTURE_BREAK or ADDITIONAL_CBOS.
func Has5thConfirmTrap(confirms []types.Confirmation) bool {
	if len(confirms) < 5 {
		return false
	}
	for _, c := range confirms {
		if fvgRelated[c.Kind] {
			return false
		}
	}
	return structuralKinds[confirms[len(confirms)-1].Kind]
}
