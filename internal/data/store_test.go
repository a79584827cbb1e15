package data_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/data"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSVParsesRequiredColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "bars.csv", "time,open,high,low,close,tick_volume\n"+
		"2024-01-01 00:00:00,100,101,99,100.5,10\n"+
		"2024-01-01 00:01:00,100.5,102,100,101.5,20\n")

	store := data.NewStore(zap.NewNop())
	bars, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Close.Equal(bars[0].Close) {
		t.Fatalf("sanity check failed")
	}
	if bars[0].Time.After(bars[1].Time) {
		t.Fatalf("bars not sorted ascending")
	}
}

func TestLoadCSVSortsAndDedupsByTime(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "unsorted.csv", "time,open,high,low,close\n"+
		"2024-01-01 00:02:00,3,3,3,3\n"+
		"2024-01-01 00:00:00,1,1,1,1\n"+
		"2024-01-01 00:00:00,1,1,1,1\n"+
		"2024-01-01 00:01:00,2,2,2,2\n")

	store := data.NewStore(zap.NewNop())
	bars, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 de-duplicated bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Fatalf("bars not strictly ascending at index %d", i)
		}
	}
}

func TestLoadCSVCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "cached.csv", "time,open,high,low,close\n2024-01-01 00:00:00,1,1,1,1\n")

	store := data.NewStore(zap.NewNop())
	first, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte("time,open,high,low,close\n2024-01-01 00:00:00,9,9,9,9\n2024-01-01 00:01:00,9,9,9,9\n"), 0644); err != nil {
		t.Fatalf("rewrite csv: %v", err)
	}

	second, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected cached result unaffected by file rewrite, got %d vs %d", len(second), len(first))
	}

	store.ClearCache()
	third, err := store.LoadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(third) != 2 {
		t.Fatalf("expected fresh read after ClearCache to see 2 bars, got %d", len(third))
	}
}

func TestLoadCSVRejectsMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "bad.csv", "time,open,high,close\n2024-01-01 00:00:00,1,1,1\n")

	store := data.NewStore(zap.NewNop())
	if _, err := store.LoadCSV(path); err == nil {
		t.Fatalf("expected error for missing low column")
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	store := data.NewStore(zap.NewNop())
	if _, err := store.LoadCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
