// Package telemetry exposes the backtest run's progress as a
// `prometheus.Registry` — bars processed, POIs registered, entries/exits/
// add-ons/rejections — so a long replay can be scraped the same way the
// teacher exposes live-server metrics.
//
// Grounded on the teacher's github.com/prometheus/client_golang dependency
// (unwired in internal/api/server.go), wired here with counter/gauge names
// matching internal/eventlog's event catalog (C9/C10's only observability
// surface; spec.md's Non-goals exclude a live dashboard, not a local
// registry).
package telemetry

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns a private prometheus.Registry and the counters/gauges
// updated as a backtest replays.
type Collector struct {
	registry *prometheus.Registry

	barsProcessed    prometheus.Counter
	poisRegistered   prometheus.Counter
	entries          prometheus.Counter
	exits            prometheus.Counter
	addOns           prometheus.Counter
	positionsRejected prometheus.Counter
	openPositions    prometheus.Gauge
	equity           prometheus.Gauge
}

// NewCollector registers a fresh metric set against a new, private
// registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		barsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Number of 1-minute bars replayed so far.",
		}),
		poisRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_pois_registered_total",
			Help: "Number of POIs registered into the state machine.",
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_entries_total",
			Help: "Number of entry fills executed.",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_exits_total",
			Help: "Number of exit fills executed.",
		}),
		addOns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_addons_total",
			Help: "Number of add-on fills executed.",
		}),
		positionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_positions_rejected_total",
			Help: "Number of entry/add-on signals rejected by the portfolio.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_open_positions",
			Help: "Number of distinct POIs currently holding an open position.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_equity",
			Help: "Mark-to-market equity as of the last processed bar.",
		}),
	}
	reg.MustRegister(c.barsProcessed, c.poisRegistered, c.entries, c.exits,
		c.addOns, c.positionsRejected, c.openPositions, c.equity)
	return c
}

// Registry returns the underlying registry for wiring into an HTTP scrape
// handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveBar increments the processed-bar counter and updates the live
// open-position count and equity gauges.
func (c *Collector) ObserveBar(openPositions int, equity float64) {
	c.barsProcessed.Inc()
	c.openPositions.Set(float64(openPositions))
	c.equity.Set(equity)
}

// ObserveEvent increments the counter matching an eventlog event kind. Kinds
// outside the counted set (POI taps, BE moves, SL modifications, bias/sync
// updates) are ignored.
func (c *Collector) ObserveEvent(kind types.EventKind) {
	switch kind {
	case types.EventPOIRegistered:
		c.poisRegistered.Inc()
	case types.EventEntry:
		c.entries.Inc()
	case types.EventExit:
		c.exits.Inc()
	case types.EventAddOn:
		c.addOns.Inc()
	case types.EventPositionRejected:
		c.positionsRejected.Inc()
	}
}

// ObserveResult replays a finished run's event log and final equity/open
// positions into the collector, so a completed backtest can still be
// scraped once via the report server even though nothing observed it live.
func (c *Collector) ObserveResult(result types.BacktestResult) {
	c.barsProcessed.Add(float64(len(result.TimeIndex)))
	for _, ev := range result.Events {
		c.ObserveEvent(ev.Kind)
	}
	openCount := 0
	for _, tr := range result.Trades {
		if tr.Open {
			openCount++
		}
	}
	c.openPositions.Set(float64(openCount))
	if n := len(result.EquityCurve); n > 0 {
		f, _ := result.EquityCurve[n-1].Equity.Float64()
		c.equity.Set(f)
	}
}
