// Package data loads the 1-minute OHLC series a backtest run replays.
//
// Grounded on original_source/data/loader.py's load_csv_directory/
// _clean_dataframe (required time/open/high/low/close columns, optional
// tick_volume/volume, sort + de-dup by timestamp), reshaped onto the
// teacher's internal/data/store.go Store/mutex/cache idiom with JSON
// sample-data generation replaced by real CSV parsing — a backtest has no
// use for synthetic live-feed fallback data.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// requiredColumns mirrors original_source/data/loader.py's REQUIRED_COLUMNS.
var requiredColumns = []string{"time", "open", "high", "low", "close"}

// Store caches the parsed 1-minute candle series for each CSV file loaded
// this process, keyed by path.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	cache  map[string][]types.Candle
}

// NewStore constructs an empty, file-backed candle store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger, cache: make(map[string][]types.Candle)}
}

// LoadCSV loads and caches the 1-minute series at path, sorted ascending
// and de-duplicated by timestamp. A second call with the same path returns
// the cached series without re-reading the file.
func (s *Store) LoadCSV(path string) ([]types.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[path]; ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("data: parse %s: %w", path, err)
	}

	s.logger.Info("loaded 1m candle series", zap.String("path", path), zap.Int("bars", len(bars)))
	s.cache[path] = bars
	return bars, nil
}

// parseCSV reads an OHLC CSV with a header row naming at least
// time/open/high/low/close (case-insensitive, any order), plus an optional
// volume or tick_volume column, then sorts ascending and drops duplicate
// timestamps — the header-driven column lookup and dedup/sort pass mirror
// _clean_dataframe's column-normalization and `drop_duplicates` behavior.
func parseCSV(r io.Reader) ([]types.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	volIdx, hasVolume := col["tick_volume"]
	if !hasVolume {
		volIdx, hasVolume = col["volume"]
	}

	var bars []types.Candle
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		t, err := parseTime(row[col["time"]])
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", row[col["time"]], err)
		}
		open, err := decimal.NewFromString(row[col["open"]])
		if err != nil {
			return nil, fmt.Errorf("parse open %q: %w", row[col["open"]], err)
		}
		high, err := decimal.NewFromString(row[col["high"]])
		if err != nil {
			return nil, fmt.Errorf("parse high %q: %w", row[col["high"]], err)
		}
		low, err := decimal.NewFromString(row[col["low"]])
		if err != nil {
			return nil, fmt.Errorf("parse low %q: %w", row[col["low"]], err)
		}
		closeP, err := decimal.NewFromString(row[col["close"]])
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", row[col["close"]], err)
		}
		volume := decimal.Zero
		if hasVolume {
			if v, err := decimal.NewFromString(row[volIdx]); err == nil {
				volume = v
			}
		}

		bars = append(bars, types.Candle{Time: t, Open: open, High: high, Low: low, Close: closeP, Volume: volume})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return dedupByTime(bars), nil
}

// dedupByTime keeps the first record for any repeated timestamp, matching
// pandas' drop_duplicates(subset=["time"]) default of keeping the first —
// the stable sort above already orders same-timestamp rows by file order,
// so the first one seen is the first one in the file.
func dedupByTime(bars []types.Candle) []types.Candle {
	out := make([]types.Candle, 0, len(bars))
	var last time.Time
	first := true
	for _, c := range bars {
		if !first && c.Time.Equal(last) {
			continue
		}
		out = append(out, c)
		last = c.Time
		first = false
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if unixSeconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unixSeconds, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", raw)
}

// ClearCache drops every cached series, forcing the next LoadCSV call to
// re-read its file.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]types.Candle)
}
