package breaker

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func mk(o, h, l, c float64, t time.Time) types.Candle {
	return types.Candle{
		Time: t, Open: decimal.NewFromFloat(o), High: decimal.NewFromFloat(h),
		Low: decimal.NewFromFloat(l), Close: decimal.NewFromFloat(c),
	}
}

func TestDetectInvertsDirection(t *testing.T) {
	obs := []types.OrderBlock{
		{Direction: types.Bullish, Top: decimal.NewFromFloat(100), Bottom: decimal.NewFromFloat(98), Status: types.OBBroken},
		{Direction: types.Bearish, Top: decimal.NewFromFloat(50), Bottom: decimal.NewFromFloat(48), Status: types.OBActive},
	}
	out := Detect(obs)
	if len(out) != 1 {
		t.Fatalf("expected 1 breaker (only BROKEN obs convert), got %d", len(out))
	}
	if out[0].Direction != types.Bearish {
		t.Fatalf("expected inverted direction bearish, got %s", out[0].Direction)
	}
	if out[0].Status != types.BreakerActive {
		t.Fatalf("expected ACTIVE, got %s", out[0].Status)
	}
}

func TestUpdateStatusMitigatedOnClose(t *testing.T) {
	breakers := []types.Breaker{
		{Direction: types.Bearish, Top: decimal.NewFromFloat(100), Bottom: decimal.NewFromFloat(98), Status: types.BreakerActive},
	}
	c := mk(99, 102, 98, 101, time.Now().UTC()) // closes above top=100
	out := UpdateStatus(breakers, c, true)
	if out[0].Status != types.BreakerMitigated {
		t.Fatalf("expected MITIGATED, got %s", out[0].Status)
	}
}
