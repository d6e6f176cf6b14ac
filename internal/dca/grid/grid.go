// Package grid implements the Grid-Spacing Rule (§4.5). It has no direct
// teacher analogue -- the project's risk/trailing_stop.go covers trailing
// logic but not grid spacing -- so this package follows the project's
// general style (small pure functions operating on *dca.Position /
// dca.Parameters) while the rule itself is specified fresh from the
// requirements.
package grid

import (
	"math"

	"dcasim/internal/dca"
)

// Effective returns G_eff, the grid fraction a new buy must clear against
// every open lot, given the position's consecutive-buy streak and the
// dynamic-grid adjustment.
func Effective(pos *dca.Position, p dca.Parameters, currentPrice float64) float64 {
	g := p.GridIntervalPercent
	if p.EnableConsecutiveIncrementalBuyGrid {
		g += float64(pos.ConsecutiveBuyCount) * p.GridConsecutiveIncrement
	}
	if p.EnableDynamicGrid {
		reference := pos.LastExecutedPrice
		if p.NormalizeToReference || !pos.HasExecuted {
			reference = pos.ReferencePrice
		}
		if reference > 0 {
			g *= math.Sqrt(currentPrice / reference)
		}
	}
	return g
}

// Check evaluates the grid-spacing rule for a candidate buy at currentPrice
// against every open lot. ok is true when the nearest lot clears G_eff; when
// false, detail carries the diagnostic fields required for a grid_spacing
// rejection row.
func Check(pos *dca.Position, p dca.Parameters, currentPrice float64) (ok bool, gEff float64, detail dca.GridSpacingDetail) {
	gEff = Effective(pos, p, currentPrice)
	if len(pos.Lots) == 0 {
		return true, gEff, dca.GridSpacingDetail{RequiredGrid: gEff}
	}

	minSpacing := math.MaxFloat64
	closestLot := pos.Lots[0].EntryPrice
	for _, l := range pos.Lots {
		spacing := math.Abs(currentPrice-l.EntryPrice) / l.EntryPrice
		if spacing < minSpacing {
			minSpacing = spacing
			closestLot = l.EntryPrice
		}
	}

	detail = dca.GridSpacingDetail{
		RequiredGrid:  gEff,
		ClosestLot:    closestLot,
		ActualSpacing: minSpacing,
	}
	return minSpacing >= gEff, gEff, detail
}
