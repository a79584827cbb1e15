package strategy

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func riskDec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestCalculateStopLossBehindPOI(t *testing.T) {
	poi := types.POI{Top: riskDec(105), Bottom: riskDec(100)}
	sl := CalculateStopLoss(poi, types.Bullish, nil, nil, StopBehindPOI)
	buffer := poi.Midpoint().Mul(stopBuffer)
	want := poi.Bottom.Sub(buffer)
	if !sl.Equal(want) {
		t.Fatalf("expected %s, got %s", want, sl)
	}
}

func TestCalculateStopLossFallsBackWhenNoFVGData(t *testing.T) {
	poi := types.POI{Top: riskDec(105), Bottom: riskDec(100)}
	sl := CalculateStopLoss(poi, types.Bullish, nil, nil, StopBehindFVG)
	want := CalculateStopLoss(poi, types.Bullish, nil, nil, StopBehindPOI)
	if !sl.Equal(want) {
		t.Fatalf("expected fallback to behind-POI, got %s vs %s", sl, want)
	}
}

func TestCalculateStopLossBehindFVGUsesNearestBottom(t *testing.T) {
	poi := types.POI{Top: riskDec(105), Bottom: riskDec(100)}
	fvgs := []types.FVG{
		{Direction: types.Bullish, Top: riskDec(103), Bottom: riskDec(101)},
		{Direction: types.Bullish, Top: riskDec(102), Bottom: riskDec(99)},
	}
	sl := CalculateStopLoss(poi, types.Bullish, fvgs, nil, StopBehindFVG)
	buffer := poi.Midpoint().Mul(stopBuffer)
	want := riskDec(99).Sub(buffer)
	if !sl.Equal(want) {
		t.Fatalf("expected min bottom 99 minus buffer, got %s want %s", sl, want)
	}
}

func TestCalculatePositionSizeZeroDistance(t *testing.T) {
	risk := types.RiskConfig{PositionSizeSync: 1.0, MaxRiskPerTrade: 0.02}
	size := CalculatePositionSize(riskDec(10000), riskDec(100), riskDec(100), types.SyncSync, risk)
	if !size.IsZero() {
		t.Fatalf("expected zero size on zero stop distance, got %s", size)
	}
}

func TestCalculatePositionSizeFormula(t *testing.T) {
	risk := types.RiskConfig{PositionSizeSync: 1.0, MaxRiskPerTrade: 0.02}
	size := CalculatePositionSize(riskDec(10000), riskDec(100), riskDec(98), types.SyncSync, risk)
	// risk_amount = 200, distance = 2, size = 100
	if !size.Equal(riskDec(100)) {
		t.Fatalf("expected size 100, got %s", size)
	}
}

func TestValidateRiskRejectsNonPositiveRisk(t *testing.T) {
	ok, rr := ValidateRisk(riskDec(100), riskDec(101), riskDec(110), types.Bullish, 2.0)
	if ok || rr != 0 {
		t.Fatalf("long with stop above entry must fail validation")
	}
}

func TestValidateRiskAcceptsAboveMinimum(t *testing.T) {
	ok, rr := ValidateRisk(riskDec(100), riskDec(98), riskDec(110), types.Bullish, 2.0)
	if !ok || rr != 5.0 {
		t.Fatalf("expected RR=5.0 valid, got ok=%v rr=%v", ok, rr)
	}
}

func TestCalculateBreakevenLevel(t *testing.T) {
	be := CalculateBreakevenLevel(riskDec(100), types.Bullish, riskDec(0.0006))
	want := riskDec(100.12)
	if !be.Equal(want) {
		t.Fatalf("expected %s, got %s", want, be)
	}
}
