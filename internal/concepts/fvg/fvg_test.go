package fvg

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func mk(o, h, l, c float64) types.Candle {
	return types.Candle{
		Time: time.Now().UTC(), Open: decimal.NewFromFloat(o), High: decimal.NewFromFloat(h),
		Low: decimal.NewFromFloat(l), Close: decimal.NewFromFloat(c),
	}
}

func TestDetectBullishGap(t *testing.T) {
	candles := []types.Candle{
		mk(100, 102, 99, 101),
		mk(101, 103, 100, 102),
		mk(108, 112, 107, 110), // low(110's candle).Low=107 > high[0]=102
	}
	out := Detect(candles, DetectConfig{MinGapPct: 0.0005, JoinConsecutive: true})
	if len(out) != 1 {
		t.Fatalf("expected 1 FVG, got %d", len(out))
	}
	if out[0].Direction != types.Bullish {
		t.Fatalf("expected bullish FVG, got %v", out[0].Direction)
	}
	if !out[0].Top.Equal(decimal.NewFromFloat(107)) || !out[0].Bottom.Equal(decimal.NewFromFloat(102)) {
		t.Fatalf("unexpected zone top=%s bottom=%s", out[0].Top, out[0].Bottom)
	}
}

func TestTrackLifecycleInversionClose(t *testing.T) {
	f := types.FVG{
		Direction: types.Bullish, Top: decimal.NewFromFloat(107), Bottom: decimal.NewFromFloat(102),
		CreationIndex: 2,
	}
	candles := make([]types.Candle, 6)
	for i := range candles {
		candles[i] = mk(105, 106, 104, 105)
	}
	// bar 3 touches and closes below bottom -> INVERTED
	candles[3] = mk(105, 106, 100, 99)

	traces := TrackLifecycle(candles, []types.FVG{f}, ModeClose, 10)
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(traces))
	}
	tr := traces[0]
	if tr.FinalStatus != types.FVGInverted {
		t.Fatalf("expected INVERTED, got %s", tr.FinalStatus)
	}
	if tr.InversionIndex != 3 {
		t.Fatalf("expected inversion at bar 3, got %d", tr.InversionIndex)
	}
}

func TestTrackLifecycleNeverTouchedStaysFresh(t *testing.T) {
	f := types.FVG{
		Direction: types.Bullish, Top: decimal.NewFromFloat(107), Bottom: decimal.NewFromFloat(102),
		CreationIndex: 2,
	}
	candles := make([]types.Candle, 5)
	for i := range candles {
		candles[i] = mk(200, 201, 199, 200) // always well above the zone
	}
	traces := TrackLifecycle(candles, []types.FVG{f}, ModeClose, 10)
	if traces[0].FinalStatus != types.FVGFresh {
		t.Fatalf("expected FRESH, got %s", traces[0].FinalStatus)
	}
}
