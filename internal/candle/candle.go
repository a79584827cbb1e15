// Package candle holds the base OHLC series type and its invariants (spec §3).
package candle

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

var (
	// ErrEmptySeries is returned when an operation requires a non-empty series.
	ErrEmptySeries = errors.New("candle: empty series")
	// ErrInvalidOHLC is returned when a candle violates the OHLC invariants.
	ErrInvalidOHLC = errors.New("candle: invalid OHLC")
	// ErrNonMonotonic is returned when timestamps are not strictly increasing.
	ErrNonMonotonic = errors.New("candle: timestamps not strictly increasing")
)

// Series is an ordered, validated sequence of candles for a single timeframe.
type Series struct {
	TF     types.Timeframe
	Bars   []types.Candle
}

// NewSeries validates bars and wraps them in a Series. Bars must already be
// sorted ascending by time; validation checks OHLC invariants and strict
// monotonicity, it does not sort.
func NewSeries(tf types.Timeframe, bars []types.Candle) (*Series, error) {
	if len(bars) == 0 {
		return nil, ErrEmptySeries
	}
	for i, b := range bars {
		if err := Validate(b); err != nil {
			return nil, fmt.Errorf("candle: bar %d: %w", i, err)
		}
		if i > 0 && !bars[i-1].Time.Before(b.Time) {
			return nil, fmt.Errorf("candle: bar %d: %w", i, ErrNonMonotonic)
		}
	}
	return &Series{TF: tf, Bars: bars}, nil
}

// Validate checks the OHLC invariants for a single candle:
// low <= min(open, close), high >= max(open, close).
func Validate(c types.Candle) error {
	minOC := c.Open
	if c.Close.LessThan(minOC) {
		minOC = c.Close
	}
	maxOC := c.Open
	if c.Close.GreaterThan(maxOC) {
		maxOC = c.Close
	}
	if c.Low.GreaterThan(minOC) {
		return fmt.Errorf("%w: low %s > min(open,close) %s", ErrInvalidOHLC, c.Low, minOC)
	}
	if c.High.LessThan(maxOC) {
		return fmt.Errorf("%w: high %s < max(open,close) %s", ErrInvalidOHLC, c.High, maxOC)
	}
	return nil
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.Bars) }

// IndexAtOrBefore returns the index of the most recent bar whose time is
// <= t, and true; or (0, false) if every bar is after t. This is the core
// primitive behind every "_at(tf, T)" time-gated query (spec §4.4): binary
// search replaces the source's boolean-mask-over-dataframe approach per the
// §9 design note on dataframe-as-interchange-format.
func (s *Series) IndexAtOrBefore(t time.Time) (int, bool) {
	n := len(s.Bars)
	idx := sort.Search(n, func(i int) bool {
		return s.Bars[i].Time.After(t)
	})
	if idx == 0 {
		return 0, false
	}
	return idx - 1, true
}
