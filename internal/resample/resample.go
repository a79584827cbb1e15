// Package resample aggregates 1-minute candles into higher timeframes over
// fixed-calendar buckets (C1).
//
// Grounded on original_source/data/resampler.py's TF_TO_PANDAS_FREQ/OHLC_AGG
// mapping, reimplemented as explicit UTC bucket arithmetic per spec.md §9's
// design note against relying on implicit pandas datetime behavior.
package resample

import (
	"fmt"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// minutesPerTF gives the bucket width in minutes for every supported
// intraday timeframe. 1D is handled specially (calendar day, not 1440
// fixed minutes, to stay robust to any future DST-aware UTC use).
var minutesPerTF = map[types.Timeframe]int{
	types.TF5m:  5,
	types.TF15m: 15,
	types.TF30m: 30,
	types.TF1H:  60,
	types.TF4H:  240,
}

// BucketStart returns the opening time of the bucket that t falls into for
// the given timeframe. 1m is the identity. Intra-day buckets align to
// minute-0 of the hour with offsets 5/15/30/60/240; 1D buckets start at
// 00:00 UTC.
func BucketStart(t time.Time, tf types.Timeframe) (time.Time, error) {
	t = t.UTC()
	switch tf {
	case types.TF1m:
		return t.Truncate(time.Minute), nil
	case types.TF1D:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	width, ok := minutesPerTF[tf]
	if !ok {
		return time.Time{}, fmt.Errorf("resample: %w: %s", ErrUnknownTimeframe, tf)
	}
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	minutesSinceMidnight := int(t.Sub(dayStart).Minutes())
	bucketMinute := (minutesSinceMidnight / width) * width
	return dayStart.Add(time.Duration(bucketMinute) * time.Minute), nil
}

// ErrUnknownTimeframe is returned for a timeframe label this package cannot
// bucket.
var ErrUnknownTimeframe = fmt.Errorf("unknown timeframe")

// Resample aggregates a 1m series into tf using first/max/min/last/sum over
// fixed-calendar buckets. Empty buckets are dropped. 1m is returned
// unchanged (by reference semantics: the same slice, not a copy). The
// result is deterministic and preserves input order.
func Resample(oneMinute []types.Candle, tf types.Timeframe) ([]types.Candle, error) {
	if tf == types.TF1m {
		return oneMinute, nil
	}
	if len(oneMinute) == 0 {
		return nil, nil
	}

	var out []types.Candle
	var cur *types.Candle
	var curBucket time.Time

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
		}
	}

	for _, c := range oneMinute {
		bucket, err := BucketStart(c.Time, tf)
		if err != nil {
			return nil, err
		}
		if cur == nil || !bucket.Equal(curBucket) {
			flush()
			nc := c
			nc.Time = bucket
			cur = &nc
			curBucket = bucket
			continue
		}
		if c.High.GreaterThan(cur.High) {
			cur.High = c.High
		}
		if c.Low.LessThan(cur.Low) {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume = cur.Volume.Add(c.Volume)
	}
	flush()
	return out, nil
}

// ResampleAll resamples a 1m series into every timeframe in tfs, returning a
// map keyed by timeframe. 1m is always included if present in tfs.
func ResampleAll(oneMinute []types.Candle, tfs []types.Timeframe) (map[types.Timeframe][]types.Candle, error) {
	out := make(map[types.Timeframe][]types.Candle, len(tfs))
	for _, tf := range tfs {
		series, err := Resample(oneMinute, tf)
		if err != nil {
			return nil, err
		}
		out[tf] = series
	}
	return out, nil
}
