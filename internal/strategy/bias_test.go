package strategy

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestDetermineBiasWeightsBOSDouble(t *testing.T) {
	events := []types.StructureEvent{
		{Kind: types.BOS, Direction: types.Bullish},
		{Kind: types.CBOS, Direction: types.Bearish},
	}
	if got := DetermineBias(events, 10); got != types.BiasBullish {
		t.Fatalf("expected BULLISH (2 vs 1 = 0.67 ratio), got %s", got)
	}
}

func TestDetermineBiasMixedIsUndefined(t *testing.T) {
	events := []types.StructureEvent{
		{Kind: types.CBOS, Direction: types.Bullish},
		{Kind: types.CBOS, Direction: types.Bearish},
	}
	if got := DetermineBias(events, 10); got != types.BiasUndefined {
		t.Fatalf("expected UNDEFINED on a 50/50 split, got %s", got)
	}
}

func TestDetermineBiasEmptyIsUndefined(t *testing.T) {
	if got := DetermineBias(nil, 10); got != types.BiasUndefined {
		t.Fatalf("expected UNDEFINED with no events, got %s", got)
	}
}

func TestDetermineBiasAtFiltersFutureEvents(t *testing.T) {
	base := time.Now().UTC()
	events := []types.StructureEvent{
		{Kind: types.BOS, Direction: types.Bullish, BreakTime: base},
		{Kind: types.BOS, Direction: types.Bearish, BreakTime: base.Add(time.Hour)},
	}
	if got := DetermineBiasAt(events, base, 10); got != types.BiasBullish {
		t.Fatalf("expected BULLISH with the later bearish event filtered out, got %s", got)
	}
}

func TestCheckSync(t *testing.T) {
	cases := []struct {
		htf, ltf types.Bias
		want     types.SyncMode
	}{
		{types.BiasBullish, types.BiasBullish, types.SyncSync},
		{types.BiasBearish, types.BiasBearish, types.SyncSync},
		{types.BiasBullish, types.BiasBearish, types.SyncDesync},
		{types.BiasUndefined, types.BiasBullish, types.SyncUndefined},
	}
	for _, c := range cases {
		if got := CheckSync(c.htf, c.ltf); got != c.want {
			t.Fatalf("CheckSync(%s,%s) = %s, want %s", c.htf, c.ltf, got, c.want)
		}
	}
}

func TestPositionSizeMultiplier(t *testing.T) {
	risk := types.RiskConfig{PositionSizeSync: 1.0, PositionSizeDesync: 0.5}
	if PositionSizeMultiplier(types.SyncSync, risk) != 1.0 {
		t.Fatalf("expected sync multiplier 1.0")
	}
	if PositionSizeMultiplier(types.SyncDesync, risk) != 0.5 {
		t.Fatalf("expected desync multiplier 0.5")
	}
	if PositionSizeMultiplier(types.SyncUndefined, risk) != 0 {
		t.Fatalf("expected undefined multiplier 0")
	}
}

func TestTargetMode(t *testing.T) {
	if TargetMode(types.SyncSync) != "distant" {
		t.Fatalf("expected distant for sync")
	}
	if TargetMode(types.SyncDesync) != "local" {
		t.Fatalf("expected local for desync")
	}
	if TargetMode(types.SyncUndefined) != "none" {
		t.Fatalf("expected none for undefined")
	}
}
