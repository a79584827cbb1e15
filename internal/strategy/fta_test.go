package strategy

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func ftaDec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestDetectFTALongPicksNearestBearishInPath(t *testing.T) {
	pois := []types.POI{
		{Direction: types.Bearish, Top: ftaDec(108), Bottom: ftaDec(106), Status: types.POIActive},
		{Direction: types.Bearish, Top: ftaDec(103), Bottom: ftaDec(101), Status: types.POIActive},
		{Direction: types.Bullish, Top: ftaDec(104), Bottom: ftaDec(102), Status: types.POIActive},
	}
	fta := DetectFTA(types.Bullish, 100, 110, pois)
	if fta == nil {
		t.Fatalf("expected an FTA")
	}
	if !fta.Bottom.Equal(ftaDec(101)) {
		t.Fatalf("expected the nearest (lowest bottom) bearish POI, got bottom=%s", fta.Bottom)
	}
}

func TestDetectFTAIgnoresMitigated(t *testing.T) {
	pois := []types.POI{
		{Direction: types.Bearish, Top: ftaDec(103), Bottom: ftaDec(101), Status: types.POIMitigated},
	}
	if fta := DetectFTA(types.Bullish, 100, 110, pois); fta != nil {
		t.Fatalf("expected no FTA from a mitigated POI, got %+v", fta)
	}
}

func TestDetectFTANoneWhenNoneInPath(t *testing.T) {
	pois := []types.POI{
		{Direction: types.Bearish, Top: ftaDec(99), Bottom: ftaDec(95), Status: types.POIActive},
	}
	if fta := DetectFTA(types.Bullish, 100, 110, pois); fta != nil {
		t.Fatalf("expected nil, the candidate's bottom is not above current price")
	}
}

func TestClassifyFTADistanceBoundaryIsClose(t *testing.T) {
	fta := types.POI{Top: ftaDec(104), Bottom: ftaDec(102)} // midpoint 103
	got := ClassifyFTADistance(fta, 100, 110, 0.3)
	if got != FTAClose {
		t.Fatalf("offset/range = 3/10 = 0.3 should be close (<=), got %s", got)
	}
}

func TestClassifyFTADistanceZeroThresholdIsFar(t *testing.T) {
	fta := types.POI{Top: ftaDec(104), Bottom: ftaDec(102)}
	if got := ClassifyFTADistance(fta, 100, 110, 0); got != FTAFar {
		t.Fatalf("threshold 0 with positive offset must be far, got %s", got)
	}
}

func TestCheckFTAInvalidation(t *testing.T) {
	fta := types.POI{Top: ftaDec(104), Bottom: ftaDec(102)}
	if !CheckFTAInvalidation(fta, 105, types.Bullish) {
		t.Fatalf("long close above FTA top should invalidate")
	}
	if CheckFTAInvalidation(fta, 103, types.Bullish) {
		t.Fatalf("long close inside FTA should not invalidate")
	}
}

func TestCheckFTAValidation(t *testing.T) {
	fta := types.POI{Top: ftaDec(104), Bottom: ftaDec(102)}
	if !CheckFTAValidation(fta, 103, 101, 101, types.Bullish) {
		t.Fatalf("wick into zone then close below bottom should validate (rejection)")
	}
	if CheckFTAValidation(fta, 103, 101, 103, types.Bullish) {
		t.Fatalf("close inside the zone is not a rejection")
	}
}

func TestShouldEnterWithFTA(t *testing.T) {
	if ok, _ := ShouldEnterWithFTA(nil, ""); !ok {
		t.Fatalf("no FTA should always allow entry")
	}
	farFTA := types.POI{}
	if ok, _ := ShouldEnterWithFTA(&farFTA, FTAFar); !ok {
		t.Fatalf("far FTA should allow entry")
	}
	if ok, _ := ShouldEnterWithFTA(&farFTA, FTAClose); ok {
		t.Fatalf("close FTA should block entry")
	}
}
