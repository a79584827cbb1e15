// Package poistate implements the POI lifecycle state machine and its
// owning manager: IDLE → TAPPED → COLLECTING → READY → POSITIONED →
// MANAGING → CLOSED (C6).
//
// Grounded on original_source/context/state_machine.py's transition
// function and StateMachineManager.
package poistate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/confirm"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a poi-id has no registered state record.
var ErrNotFound = errors.New("poistate: poi not found")

// ConceptData bundles the nearby artifact tables the confirmation engine
// needs for one bar.
type ConceptData struct {
	NearbyFVGs   []types.FVG
	FVGLifecycle []types.FVGLifecycle
	Liquidity    []types.LiquidityLevel
	Structure    []types.StructureEvent
}

// Manager owns the poi-id → state record map; it is the only stateful
// component among the C3-C6 concept/state layers.
type Manager struct {
	minConfirm int
	maxConfirm int
	states     map[string]*types.POIState
	nextIndex  int
}

// NewManager constructs an empty manager with the given confirmation
// thresholds.
func NewManager(minConfirm, maxConfirm int) *Manager {
	return &Manager{minConfirm: minConfirm, maxConfirm: maxConfirm, states: make(map[string]*types.POIState)}
}

// Register assigns a POI a fingerprint id and an IDLE state record.
// Identity per spec.md §3 is "<timeframe>_<direction>_<sequential-index>".
func (m *Manager) Register(poi types.POI, tf types.Timeframe, t time.Time) string {
	id := fmt.Sprintf("%s_%d_%d", tf, poi.Direction, m.nextIndex)
	m.nextIndex++
	m.states[id] = &types.POIState{
		POIID: id, Timeframe: tf, POI: poi, Phase: types.PhaseIdle,
		CreatedAt: t, LastUpdated: t,
	}
	return id
}

// Get returns the state record for a poi-id.
func (m *Manager) Get(id string) (types.POIState, error) {
	s, ok := m.states[id]
	if !ok {
		return types.POIState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *s, nil
}

// Update advances every state in {IDLE, TAPPED, COLLECTING} by one bar.
// READY, POSITIONED, MANAGING, and CLOSED are only advanced by the
// external SetPositioned/SetManaging/Close calls.
func (m *Manager) Update(c types.Candle, barIndex int, t time.Time, cd ConceptData) {
	for _, s := range m.states {
		switch s.Phase {
		case types.PhaseIdle, types.PhaseTapped, types.PhaseCollecting:
			transition(s, c, barIndex, t, cd, m.minConfirm, m.maxConfirm)
		}
	}
}

func transition(s *types.POIState, c types.Candle, barIndex int, t time.Time, cd ConceptData, minConfirm, maxConfirm int) {
	s.LastUpdated = t

	poiZone := confirm.POIZone{Direction: s.POI.Direction, Top: s.POI.Top, Bottom: s.POI.Bottom, Midpoint: s.POI.Midpoint()}

	if s.Phase == types.PhaseIdle {
		tapped := (s.POI.Direction == types.Bullish && c.Low.LessThanOrEqual(s.POI.Top)) ||
			(s.POI.Direction == types.Bearish && c.High.GreaterThanOrEqual(s.POI.Bottom))
		if tapped {
			s.Phase = types.PhaseTapped
		}
	}

	if s.Phase == types.PhaseTapped {
		s.Phase = types.PhaseCollecting
		bar := confirm.Bar{
			Candle: c, Index: barIndex, NearbyFVGs: cd.NearbyFVGs, FVGLifecycle: cd.FVGLifecycle,
			Liquidity: cd.Liquidity, Structure: cd.Structure,
		}
		s.Confirmations = confirm.Collect(s.Confirmations, bar, poiZone, t, maxConfirm)
		if confirm.IsReady(s.Confirmations, minConfirm) {
			s.Phase = types.PhaseReady
		}
		return
	}

	if s.Phase == types.PhaseCollecting {
		bar := confirm.Bar{
			Candle: c, Index: barIndex, NearbyFVGs: cd.NearbyFVGs, FVGLifecycle: cd.FVGLifecycle,
			Liquidity: cd.Liquidity, Structure: cd.Structure,
		}
		s.Confirmations = confirm.Collect(s.Confirmations, bar, poiZone, t, maxConfirm)
		if confirm.IsReady(s.Confirmations, minConfirm) {
			s.Phase = types.PhaseReady
		}
	}
}

// ActiveStates returns every state record not in CLOSED phase, ordered by
// POI id so callers iterating the result (entry/exit/add-on evaluation,
// position-cap enforcement) see the same order on every run.
func (m *Manager) ActiveStates() []types.POIState {
	var out []types.POIState
	for _, s := range m.states {
		if s.Phase != types.PhaseClosed {
			out = append(out, *s)
		}
	}
	sortByPOIID(out)
	return out
}

// ReadyStates returns every state record in READY phase, ordered by POI id.
func (m *Manager) ReadyStates() []types.POIState {
	var out []types.POIState
	for _, s := range m.states {
		if s.Phase == types.PhaseReady {
			out = append(out, *s)
		}
	}
	sortByPOIID(out)
	return out
}

// PositionedStates returns every state record in POSITIONED or MANAGING
// phase, ordered by POI id.
func (m *Manager) PositionedStates() []types.POIState {
	var out []types.POIState
	for _, s := range m.states {
		if s.Phase == types.PhasePositioned || s.Phase == types.PhaseManaging {
			out = append(out, *s)
		}
	}
	sortByPOIID(out)
	return out
}

// sortByPOIID gives map-backed state slices a deterministic, reproducible
// order — Go's map iteration order is randomized per run.
func sortByPOIID(states []types.POIState) {
	sort.Slice(states, func(i, j int) bool { return states[i].POIID < states[j].POIID })
}

// SetPositioned transitions a READY POI to POSITIONED, recording the
// entry parameters the strategy layer decided on.
func (m *Manager) SetPositioned(id string, entryPrice, stop, target decimal.Decimal) error {
	s, ok := m.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Phase = types.PhasePositioned
	s.EntryPrice, s.StopLoss, s.Target = entryPrice, stop, target
	return nil
}

// SetManaging transitions a POSITIONED POI to MANAGING, recording the
// breakeven level that triggered it.
func (m *Manager) SetManaging(id string, breakevenLevel decimal.Decimal) error {
	s, ok := m.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Phase = types.PhaseManaging
	s.BreakevenLevel = breakevenLevel
	return nil
}

// Close forces a POI to CLOSED, whether by trade exit, expiry, or
// explicit invalidation. CLOSED is terminal: a second call is a no-op.
func (m *Manager) Close(id string) error {
	s, ok := m.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Phase = types.PhaseClosed
	return nil
}
