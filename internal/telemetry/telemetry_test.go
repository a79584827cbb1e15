package telemetry

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEventIncrementsMatchingCounter(t *testing.T) {
	c := NewCollector()
	c.ObserveEvent(types.EventPOIRegistered)
	c.ObserveEvent(types.EventEntry)
	c.ObserveEvent(types.EventEntry)

	if got := testutil.ToFloat64(c.poisRegistered); got != 1 {
		t.Fatalf("pois registered = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.entries); got != 2 {
		t.Fatalf("entries = %v, want 2", got)
	}
}

func TestObserveBarUpdatesGauges(t *testing.T) {
	c := NewCollector()
	c.ObserveBar(2, 10500.50)

	if got := testutil.ToFloat64(c.openPositions); got != 2 {
		t.Fatalf("open positions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.equity); got != 10500.50 {
		t.Fatalf("equity = %v, want 10500.50", got)
	}
}

func TestObserveResultReplaysEventLog(t *testing.T) {
	c := NewCollector()
	result := types.BacktestResult{
		TimeIndex: make([]time.Time, 3),
		Events: []types.Event{
			{Kind: types.EventPOIRegistered},
			{Kind: types.EventEntry},
			{Kind: types.EventExit},
		},
	}
	c.ObserveResult(result)

	if got := testutil.ToFloat64(c.barsProcessed); got != 3 {
		t.Fatalf("bars processed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.exits); got != 1 {
		t.Fatalf("exits = %v, want 1", got)
	}
}
