// Package eventlog is the append-only audit trail for a backtest run:
// POI registration/tap, entries/exits, breakeven moves, stop modifications,
// add-ons, bias/sync recomputation, and rejected entries.
//
// Grounded on original_source/engine/events.py's EventLog, dropping the
// teacher's internal/backtester/events.go priority-queue machinery since
// a single-threaded bar fold has no need for a scheduled event bus — only
// its append/filter shape survives.
package eventlog

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Log is an append-only, ordered sequence of audit events.
type Log struct {
	events []types.Event
}

// New constructs an empty log.
func New() *Log {
	return &Log{}
}

// Emit appends an event with the given kind, time, bar index, and detail
// fields.
func (l *Log) Emit(kind types.EventKind, t time.Time, barIndex int, details map[string]any) {
	l.events = append(l.events, types.Event{Kind: kind, Time: t, BarIndex: barIndex, Details: details})
}

// All returns every recorded event in emission order.
func (l *Log) All() []types.Event {
	out := make([]types.Event, len(l.events))
	copy(out, l.events)
	return out
}

// OfKind returns every recorded event matching kind, in emission order.
func (l *Log) OfKind(kind types.EventKind) []types.Event {
	var out []types.Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	return len(l.events)
}
