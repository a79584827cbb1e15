package structure

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func mk(close float64, t time.Time) types.Candle {
	return types.Candle{
		Time: t, Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close + 1),
		Low: decimal.NewFromFloat(close - 1), Close: decimal.NewFromFloat(close),
	}
}

func TestDetectFirstBreakIsCBOS(t *testing.T) {
	base := time.Now().UTC()
	var candles []types.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, mk(100, base.Add(time.Duration(i)*time.Minute)))
	}
	candles = append(candles, mk(111, base.Add(5*time.Minute))) // breaks the swing high at index 0, confirmed at bar 4

	swings := []types.Swing{
		{Index: 0, ConfirmedIndex: 4, Direction: types.Bullish, Price: decimal.NewFromInt(110), Status: types.SwingActive},
	}
	events := Detect(candles, swings, BreakModeClose)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != types.CBOS {
		t.Fatalf("first break from UNDEFINED trend should be cBOS, got %s", events[0].Kind)
	}
}

func TestDetectReversalIsBOS(t *testing.T) {
	base := time.Now().UTC()
	var candles []types.Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, mk(100, base.Add(time.Duration(i)*time.Minute)))
	}
	candles[5] = mk(111, base.Add(5*time.Minute)) // breaks swing high -> trend bullish
	candles[9] = mk(89, base.Add(9*time.Minute))  // breaks swing low -> reversal, should be BOS

	swings := []types.Swing{
		{Index: 0, ConfirmedIndex: 5, Direction: types.Bullish, Price: decimal.NewFromInt(110), Status: types.SwingActive},
		{Index: 1, ConfirmedIndex: 9, Direction: types.Bearish, Price: decimal.NewFromInt(90), Status: types.SwingActive},
	}
	events := Detect(candles, swings, BreakModeClose)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != types.CBOS {
		t.Fatalf("first event should be cBOS, got %s", events[0].Kind)
	}
	if events[1].Kind != types.BOS {
		t.Fatalf("reversal event should be BOS, got %s", events[1].Kind)
	}
}
