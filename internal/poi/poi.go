// Package poi aggregates overlapping same-direction FVGs, order blocks,
// breaker blocks, liquidity levels, and session levels into scored
// composite zones (C3).
//
// Grounded on original_source/concepts/registry.py's build_poi_registry,
// _normalize_all, _merge_zones, _score_poi, and update_poi_status.
package poi

import (
	"fmt"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

var baseScores = map[types.POIComponentType]float64{
	types.ComponentFVGHTF:    3.0,
	types.ComponentFVGLTF:    1.0,
	types.ComponentOB:        2.0,
	types.ComponentBreaker:   2.0,
	types.ComponentIFVG:      2.0,
	types.ComponentLiquidity: 2.0,
	types.ComponentSession:   1.0,
}

var freshnessMult = map[string]float64{
	"FRESH":             1.5,
	"ACTIVE":            1.5,
	"TESTED":            1.0,
	"PARTIALLY_FILLED":  0.5,
}

var htfTimeframes = map[types.Timeframe]bool{
	types.TF4H: true, types.TF1H: true,
}

// zoneCandidate is the normalized intermediate form of any concept artifact
// before overlap merging.
type zoneCandidate struct {
	direction types.Direction
	top       decimal.Decimal
	bottom    decimal.Decimal
	kind      types.POIComponentType
	index     int
	status    string
	createdAt time.Time
	isFVG     bool
}

// Inputs bundles every concept-detector output for one timeframe that the
// POI builder consumes.
type Inputs struct {
	Timeframe      types.Timeframe
	FVGs           []types.FVG
	FVGLifecycle   []types.FVGLifecycle
	OrderBlocks    []types.OrderBlock
	Breakers       []types.Breaker
	Liquidity      []types.LiquidityLevel
	SessionLevels  []LiquiditySessionLevel
	EarliestBar    time.Time
	OverlapTol     float64
}

// LiquiditySessionLevel mirrors liquidity.SessionLevel without importing
// that package, keeping poi's dependency surface to pkg/types only.
type LiquiditySessionLevel struct {
	PeriodStart time.Time
	High        decimal.Decimal
	Low         decimal.Decimal
}

// Build runs normalize → merge-by-overlap → score over one timeframe's
// artifact tables, returning POIs sorted by score descending.
func Build(in Inputs) []types.POI {
	candidates := normalize(in)
	if len(candidates) == 0 {
		return nil
	}

	var bullish, bearish []zoneCandidate
	for _, c := range candidates {
		if c.direction == types.Bullish {
			bullish = append(bullish, c)
		} else {
			bearish = append(bearish, c)
		}
	}

	var pois []types.POI
	pois = append(pois, mergeZones(bullish, types.Bullish, in.Timeframe, in.OverlapTol, in.EarliestBar)...)
	pois = append(pois, mergeZones(bearish, types.Bearish, in.Timeframe, in.OverlapTol, in.EarliestBar)...)

	sort.SliceStable(pois, func(i, j int) bool { return pois[i].Score > pois[j].Score })

	for i := range pois {
		pois[i].ID = fmt.Sprintf("%s_%d_%d", pois[i].Timeframe, pois[i].Direction, i)
	}
	return pois
}

func normalize(in Inputs) []zoneCandidate {
	var out []zoneCandidate
	isHTF := htfTimeframes[in.Timeframe]

	lifecycleByFVGIndex := make(map[int]types.FVGLifecycle, len(in.FVGLifecycle))
	for _, lc := range in.FVGLifecycle {
		lifecycleByFVGIndex[lc.FVG.CreationIndex] = lc
	}

	for i, f := range in.FVGs {
		status := string(f.Status)
		direction := f.Direction
		kind := types.ComponentFVGLTF
		if isHTF {
			kind = types.ComponentFVGHTF
		}

		if lc, ok := lifecycleByFVGIndex[f.CreationIndex]; ok {
			if lc.FinalStatus == types.FVGInverted {
				out = append(out, zoneCandidate{
					direction: direction.Opposite(), top: f.Top, bottom: f.Bottom,
					kind: types.ComponentIFVG, index: i, status: "ACTIVE",
					createdAt: f.CreationTime, isFVG: true,
				})
				continue
			}
			status = string(lc.FinalStatus)
		}

		if status == string(types.FVGMitigated) || status == string(types.FVGFullyFilled) {
			continue
		}
		out = append(out, zoneCandidate{
			direction: direction, top: f.Top, bottom: f.Bottom,
			kind: kind, index: i, status: status, createdAt: f.CreationTime, isFVG: true,
		})
	}

	for i, ob := range in.OrderBlocks {
		if ob.Status == types.OBMitigated || ob.Status == types.OBBroken {
			continue
		}
		out = append(out, zoneCandidate{
			direction: ob.Direction, top: ob.Top, bottom: ob.Bottom,
			kind: types.ComponentOB, index: i, status: string(ob.Status), createdAt: ob.CreatedAt,
		})
	}

	for i, b := range in.Breakers {
		if b.Status == types.BreakerMitigated {
			continue
		}
		out = append(out, zoneCandidate{
			direction: b.Direction, top: b.Top, bottom: b.Bottom,
			kind: types.ComponentBreaker, index: i, status: string(b.Status), createdAt: b.CreatedAt,
		})
	}

	halfBandPct := decimal.NewFromFloat(0.0005)
	for i, l := range in.Liquidity {
		if l.Status == types.LiquiditySwept || l.Count < 3 {
			continue
		}
		half := l.Level.Mul(halfBandPct).Abs()
		out = append(out, zoneCandidate{
			direction: l.Direction, top: l.Level.Add(half), bottom: l.Level.Sub(half),
			kind: types.ComponentLiquidity, index: i, status: string(l.Status), createdAt: in.EarliestBar,
		})
	}

	sessionHalfPct := decimal.NewFromFloat(0.0003)
	for i, s := range in.SessionLevels {
		hHalf := s.High.Mul(sessionHalfPct)
		lHalf := s.Low.Mul(sessionHalfPct)
		out = append(out, zoneCandidate{
			direction: types.Bearish, top: s.High.Add(hHalf), bottom: s.High.Sub(hHalf),
			kind: types.ComponentSession, index: i, status: "ACTIVE", createdAt: s.PeriodStart,
		})
		out = append(out, zoneCandidate{
			direction: types.Bullish, top: s.Low.Add(lHalf), bottom: s.Low.Sub(lHalf),
			kind: types.ComponentSession, index: i, status: "ACTIVE", createdAt: s.PeriodStart,
		})
	}

	return out
}

func mergeZones(zones []zoneCandidate, direction types.Direction, tf types.Timeframe, tolerance float64, earliestBarTime time.Time) []types.POI {
	if len(zones) == 0 {
		return nil
	}
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].bottom.LessThan(zones[j].bottom) })

	tol := decimal.NewFromFloat(tolerance)
	one := decimal.NewFromInt(1)

	var pois []types.POI
	currentTop := zones[0].top
	currentBottom := zones[0].bottom
	currentComponents := []types.POIComponent{toComponent(zones[0])}
	latestFVGTime, hasFVG := zones[0].createdAt, zones[0].isFVG

	emit := func() {
		ts := earliestBarTime
		if hasFVG {
			ts = latestFVGTime
		}
		pois = append(pois, types.POI{
			Timeframe: tf, Direction: direction, Top: currentTop, Bottom: currentBottom,
			Components: currentComponents, Score: score(currentComponents), CreatedAt: ts,
			Status: types.POIActive,
		})
	}

	for _, z := range zones[1:] {
		threshold := currentTop.Mul(one.Add(tol))
		if z.bottom.LessThanOrEqual(threshold) {
			if z.top.GreaterThan(currentTop) {
				currentTop = z.top
			}
			if z.bottom.LessThan(currentBottom) {
				currentBottom = z.bottom
			}
			currentComponents = append(currentComponents, toComponent(z))
			if z.isFVG && (!hasFVG || z.createdAt.After(latestFVGTime)) {
				latestFVGTime = z.createdAt
				hasFVG = true
			}
			continue
		}
		emit()
		currentTop, currentBottom = z.top, z.bottom
		currentComponents = []types.POIComponent{toComponent(z)}
		latestFVGTime, hasFVG = z.createdAt, z.isFVG
	}
	emit()
	return pois
}

func toComponent(z zoneCandidate) types.POIComponent {
	return types.POIComponent{Type: z.kind, SourceIndex: z.index, Status: z.status}
}

func score(components []types.POIComponent) float64 {
	total := 0.0
	for _, c := range components {
		base := baseScores[c.Type]
		if base == 0 {
			base = 1.0
		}
		fresh := freshnessMult[c.Status]
		if fresh == 0 {
			fresh = 1.0
		}
		total += base * fresh
	}
	switch n := len(components); {
	case n >= 3:
		total += 4.0
	case n == 2:
		total += 2.0
	}
	return roundTo2(total)
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// UpdateStatus applies one bar of price action to a snapshot of POIs:
// ACTIVE/TESTED → TESTED on wick touch, MITIGATED on close through.
func UpdateStatus(pois []types.POI, c types.Candle) []types.POI {
	out := make([]types.POI, len(pois))
	copy(out, pois)
	for i := range out {
		if out[i].Status == types.POIMitigated {
			continue
		}
		top, bottom := out[i].Top, out[i].Bottom
		if out[i].Direction == types.Bullish {
			switch {
			case c.Close.LessThan(bottom):
				out[i].Status = types.POIMitigated
			case c.Low.LessThanOrEqual(top):
				out[i].Status = types.POITested
			}
		} else {
			switch {
			case c.Close.GreaterThan(top):
				out[i].Status = types.POIMitigated
			case c.High.GreaterThanOrEqual(bottom):
				out[i].Status = types.POITested
			}
		}
	}
	return out
}
