// Package breaker derives breaker blocks from broken order blocks and
// tracks their mitigation (C2 supplement).
//
// Grounded on original_source/concepts/breakers.py.
package breaker

import (
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Detect converts every BROKEN order block into an active breaker block
// with the zone carried over unchanged but the direction inverted: a
// demand zone that failed becomes supply, and vice versa.
func Detect(obs []types.OrderBlock) []types.Breaker {
	var out []types.Breaker
	for _, ob := range obs {
		if ob.Status != types.OBBroken {
			continue
		}
		out = append(out, types.Breaker{
			Direction: ob.Direction.Opposite(),
			Top:       ob.Top,
			Bottom:    ob.Bottom,
			Index:     ob.Index,
			CreatedAt: ob.CreatedAt,
			Status:    types.BreakerActive,
		})
	}
	return out
}

// UpdateStatus applies one bar of mitigation-tracking, mirroring the order
// block transition: a breaker is MITIGATED once price closes back through
// the opposite side of its zone (close-mitigation) or merely wicks through
// it (wick-mitigation).
func UpdateStatus(breakers []types.Breaker, c types.Candle, closeMitigation bool) []types.Breaker {
	out := make([]types.Breaker, len(breakers))
	copy(out, breakers)
	for i := range out {
		if out[i].Status == types.BreakerMitigated {
			continue
		}
		top, bottom := out[i].Top, out[i].Bottom
		if out[i].Direction == types.Bullish {
			switch {
			case closeMitigation && c.Close.LessThan(bottom):
				out[i].Status = types.BreakerMitigated
			case !closeMitigation && c.Low.LessThan(bottom):
				out[i].Status = types.BreakerMitigated
			}
		} else {
			switch {
			case closeMitigation && c.Close.GreaterThan(top):
				out[i].Status = types.BreakerMitigated
			case !closeMitigation && c.High.GreaterThan(top):
				out[i].Status = types.BreakerMitigated
			}
		}
	}
	return out
}
