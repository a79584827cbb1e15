// Package mtfcontext pre-computes the full concept pipeline for every
// configured timeframe and exposes time-gated queries over the result,
// so strategy code can never see artifacts that have not yet "occurred" at
// the current backtest bar (C4).
//
// Grounded on original_source/context/mtf_manager.py's MTFManager, with
// DataFrame boolean masking replaced by sort.Search binary search per
// spec.md §9's design note on time-gating.
package mtfcontext

import (
	"fmt"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/concepts/breaker"
	"github.com/atlas-desktop/trading-backend/internal/concepts/fvg"
	"github.com/atlas-desktop/trading-backend/internal/concepts/liquidity"
	"github.com/atlas-desktop/trading-backend/internal/concepts/orderblock"
	"github.com/atlas-desktop/trading-backend/internal/concepts/structure"
	"github.com/atlas-desktop/trading-backend/internal/concepts/swing"
	"github.com/atlas-desktop/trading-backend/internal/poi"
	"github.com/atlas-desktop/trading-backend/internal/resample"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// timeframeData is the full pre-computed concept pipeline output for one
// timeframe.
type timeframeData struct {
	series       *candle.Series
	swings       []types.Swing
	structure    []types.StructureEvent
	fvgs         []types.FVG
	fvgLifecycle []types.FVGLifecycle
	liquidity    []types.LiquidityLevel
	orderBlocks  []types.OrderBlock
	breakers     []types.Breaker
	sessionLevels []liquidity.SessionLevel
	pois         []types.POI

	// boundary holds every bucket-open timestamp for this timeframe, used
	// by TFJustClosed, sorted ascending (equal to series.Bars[i].Time).
	boundary []time.Time
}

// Manager owns the pre-computed artifact tables for every configured
// timeframe and answers read-only time-gated queries over them.
type Manager struct {
	cfg  types.Config
	data map[types.Timeframe]*timeframeData
}

// NewManager pre-computes the resampler → detectors → POI-builder pipeline
// for every timeframe named in cfg.Data.Timeframes, from a 1-minute series.
func NewManager(oneMinute []types.Candle, cfg types.Config) (*Manager, error) {
	if len(oneMinute) == 0 {
		return nil, fmt.Errorf("mtfcontext: empty 1m series")
	}
	m := &Manager{cfg: cfg, data: make(map[types.Timeframe]*timeframeData)}

	for _, tfName := range cfg.Data.Timeframes {
		tf := types.Timeframe(tfName)
		var bars []types.Candle
		var err error
		if tf == types.TF1m {
			bars = oneMinute
		} else {
			bars, err = resample.Resample(oneMinute, tf)
			if err != nil {
				return nil, fmt.Errorf("mtfcontext: resample %s: %w", tf, err)
			}
		}
		td, err := computeTimeframe(tf, bars, cfg, oneMinute[0].Time)
		if err != nil {
			return nil, fmt.Errorf("mtfcontext: compute %s: %w", tf, err)
		}
		m.data[tf] = td
	}
	return m, nil
}

func computeTimeframe(tf types.Timeframe, bars []types.Candle, cfg types.Config, earliestBar time.Time) (*timeframeData, error) {
	series, err := candle.NewSeries(tf, bars)
	if err != nil {
		return nil, err
	}

	swingLen, ok := cfg.Concepts.Fractals.SwingLength[string(tf)]
	if !ok {
		swingLen = 5
	}
	swings := swing.Detect(bars, swingLen)

	breakMode := structure.BreakModeClose
	if cfg.Concepts.Structure.BreakMode == "wick" {
		breakMode = structure.BreakModeWick
	}
	structureEvents := structure.Detect(bars, swings, breakMode)

	fvgs := fvg.Detect(bars, fvg.DetectConfig{
		MinGapPct:       cfg.Concepts.FVG.MinGapPct,
		JoinConsecutive: cfg.Concepts.FVG.JoinConsecutive,
	})
	lifecycle := fvg.TrackLifecycle(bars, fvgs, fvg.MitigationMode(cfg.Concepts.FVG.MitigationMode), 500)

	liqLevels := liquidity.DetectEqualLevels(swings, cfg.Concepts.Liquidity.RangePercent, cfg.Concepts.Liquidity.MinTouches)
	sessionLevels := liquidity.DetectSessionLevels(bars)

	obs := orderblock.Detect(bars, structureEvents)
	brk := breaker.Detect(obs)

	sessionInputs := make([]poi.LiquiditySessionLevel, len(sessionLevels))
	for i, s := range sessionLevels {
		sessionInputs[i] = poi.LiquiditySessionLevel{PeriodStart: s.PeriodStart, High: s.High, Low: s.Low}
	}

	pois := poi.Build(poi.Inputs{
		Timeframe:     tf,
		FVGs:          fvgs,
		FVGLifecycle:  lifecycle,
		OrderBlocks:   obs,
		Breakers:      brk,
		Liquidity:     liqLevels,
		SessionLevels: sessionInputs,
		EarliestBar:   earliestBar,
		OverlapTol:    0.001,
	})

	boundary := make([]time.Time, len(bars))
	for i, c := range bars {
		boundary[i] = c.Time
	}

	return &timeframeData{
		series: series, swings: swings, structure: structureEvents,
		fvgs: fvgs, fvgLifecycle: lifecycle, liquidity: liqLevels,
		orderBlocks: obs, breakers: brk, sessionLevels: sessionLevels,
		pois: pois, boundary: boundary,
	}, nil
}

func (m *Manager) lookup(tf types.Timeframe) (*timeframeData, error) {
	td, ok := m.data[tf]
	if !ok {
		return nil, fmt.Errorf("mtfcontext: timeframe %q not found", tf)
	}
	return td, nil
}

// CandleAt returns the most recent candle in tf whose bucket-open time is
// ≤ T, and whether one exists.
func (m *Manager) CandleAt(tf types.Timeframe, t time.Time) (types.Candle, bool, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return types.Candle{}, false, err
	}
	idx, ok := td.series.IndexAtOrBefore(t)
	if !ok {
		return types.Candle{}, false, nil
	}
	return td.series.Bars[idx], true, nil
}

// POIsAt returns all POIs in tf whose creation timestamp is ≤ T.
func (m *Manager) POIsAt(tf types.Timeframe, t time.Time) ([]types.POI, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.POI
	for _, p := range td.pois {
		if !p.CreatedAt.After(t) {
			out = append(out, p)
		}
	}
	return out, nil
}

// StructureAt returns all structure events whose break bar maps to a
// candle with open time ≤ T.
func (m *Manager) StructureAt(tf types.Timeframe, t time.Time) ([]types.StructureEvent, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.StructureEvent
	for _, ev := range td.structure {
		if ev.BreakIndex < 0 || ev.BreakIndex >= len(td.series.Bars) {
			continue
		}
		if !td.series.Bars[ev.BreakIndex].Time.After(t) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// FVGsAt returns all FVGs whose creation-index maps to a candle with open
// time ≤ T.
func (m *Manager) FVGsAt(tf types.Timeframe, t time.Time) ([]types.FVG, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.FVG
	for _, f := range td.fvgs {
		if f.CreationIndex < 0 || f.CreationIndex >= len(td.series.Bars) {
			continue
		}
		if !td.series.Bars[f.CreationIndex].Time.After(t) {
			out = append(out, f)
		}
	}
	return out, nil
}

// LiquidityAt returns all liquidity levels in tf confirmed (last touch) at
// or before T.
func (m *Manager) LiquidityAt(tf types.Timeframe, t time.Time) ([]types.LiquidityLevel, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.LiquidityLevel
	for _, lvl := range td.liquidity {
		if len(lvl.Indices) == 0 {
			continue
		}
		confirmIdx := lvl.Indices[len(lvl.Indices)-1]
		if confirmIdx < 0 || confirmIdx >= len(td.series.Bars) {
			continue
		}
		if !td.series.Bars[confirmIdx].Time.After(t) {
			out = append(out, lvl)
		}
	}
	return out, nil
}

// FVGLifecycleAt returns all FVG lifecycle traces in tf whose underlying gap
// was created at or before T.
func (m *Manager) FVGLifecycleAt(tf types.Timeframe, t time.Time) ([]types.FVGLifecycle, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.FVGLifecycle
	for _, fl := range td.fvgLifecycle {
		if !fl.FVG.CreationTime.After(t) {
			out = append(out, fl)
		}
	}
	return out, nil
}

// SwingsAt returns all swings in tf confirmed (knowable without look-ahead)
// at or before T.
func (m *Manager) SwingsAt(tf types.Timeframe, t time.Time) ([]types.Swing, error) {
	td, err := m.lookup(tf)
	if err != nil {
		return nil, err
	}
	var out []types.Swing
	for _, s := range td.swings {
		if s.ConfirmedIndex < 0 || s.ConfirmedIndex >= len(td.series.Bars) {
			continue
		}
		if !td.series.Bars[s.ConfirmedIndex].Time.After(t) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ActivePOI pairs a POI with the timeframe it was built from.
type ActivePOI struct {
	types.POI
	Timeframe types.Timeframe
}

// AllActivePOIs returns the union across all timeframes of POIsAt(tf, T),
// tagged with their source timeframe and sorted by score descending.
func (m *Manager) AllActivePOIs(t time.Time) ([]ActivePOI, error) {
	var out []ActivePOI
	for tf := range m.data {
		pois, err := m.POIsAt(tf, t)
		if err != nil {
			return nil, err
		}
		for _, p := range pois {
			out = append(out, ActivePOI{POI: p, Timeframe: tf})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// TFJustClosed reports whether tf = 1m, or whether T + 1 minute is the
// opening time of some bucket in tf — used to invoke "on TF-close" work at
// the last 1m bar of every higher-TF bucket.
func (m *Manager) TFJustClosed(tf types.Timeframe, t time.Time) (bool, error) {
	if tf == types.TF1m {
		return true, nil
	}
	td, err := m.lookup(tf)
	if err != nil {
		return false, err
	}
	next := t.Add(time.Minute)
	idx := sort.Search(len(td.boundary), func(i int) bool { return !td.boundary[i].Before(next) })
	return idx < len(td.boundary) && td.boundary[idx].Equal(next), nil
}
