// Package trailingsell implements the Trailing-Sell State Machine (§4.4):
// activation with LIFO lot freezing, ratchet-only stop updates, adaptive
// pullback narrowing in downtrend continuations, and execution with
// per-lot PnL realization. Mirrors trailingbuy's structure (long->short of
// the same activation/update/execution shape) per the project's
// risk.TrailingStopManager, which already handles both long and short
// positions with the same ratchet discipline.
package trailingsell

import (
	"dcasim/internal/dca"
	"dcasim/internal/dca/grid"
	"dcasim/internal/dca/ledger"
)

const defaultRemainingLotsLossTolerance = 0.05

// effectiveRates resolves A_sell, P_sell and whether the profit requirement
// is bypassed for this activation attempt, applying the adaptive-downtrend
// rule of §4.4 when enabled and the position has just made >=2 consecutive
// sells.
func effectiveRates(pos *dca.Position, p dca.Parameters, currentPrice float64) (aSell, pSell float64, bypassProfit bool) {
	aSell = p.TrailingSellActivationPercent
	pSell = p.TrailingSellPullbackPercent

	if !p.EnableAdaptiveTrailingSell || pos.ConsecutiveSellCount < 2 || pos.LastSellPrice == nil {
		return aSell, pSell, false
	}

	if currentPrice > *pos.LastSellPrice {
		return aSell, pSell, false
	}
	if currentPrice < *pos.LastSellPrice {
		k := float64(pos.ConsecutiveSellCount - 1)
		narrowed := pSell
		for i := 0; i < int(k); i++ {
			narrowed *= 0.5
		}
		if narrowed < 0.02 {
			narrowed = 0.02
		}
		return 0, narrowed, true
	}
	return aSell, pSell, false
}

// lotProfitRequirement computes the required profit margin for eligibility,
// honoring the consecutive-incremental-sell-profit ladder and the adaptive
// bypass.
func lotProfitRequirement(pos *dca.Position, p dca.Parameters, currentPrice float64, bypassProfit bool) float64 {
	if bypassProfit {
		return 0
	}
	req := p.ProfitRequirement
	if p.EnableConsecutiveIncrementalSellProfit && pos.ConsecutiveSellCount >= 1 {
		req += grid.Effective(pos, p, currentPrice)
	}
	return req
}

// eligibleLots returns the indices into pos.Lots eligible to be sold given
// the current price and profit requirement, per the lot-based or
// average-based eligibility rule.
func eligibleLots(pos *dca.Position, p dca.Parameters, currentPrice, req float64) []int {
	consecutive := pos.ConsecutiveSellCount >= 1 && pos.LastSellPrice != nil

	if p.EnableAverageBasedSell {
		refAvg := pos.AverageCost()
		if consecutive {
			refAvg = *pos.LastSellPrice
		}
		if currentPrice > refAvg*(1+req) {
			all := make([]int, len(pos.Lots))
			for i := range pos.Lots {
				all[i] = i
			}
			return all
		}
		return nil
	}

	var eligible []int
	for i, l := range pos.Lots {
		refPrice := l.EntryPrice
		if consecutive {
			refPrice = *pos.LastSellPrice
		}
		if currentPrice > refPrice*(1+req) {
			eligible = append(eligible, i)
		}
	}
	return eligible
}

// Activate evaluates the Idle->Armed transition. attempted is true when the
// activation threshold was crossed (so the caller should log a
// REJECTED_SELL with reason no_eligible_lots when activated is false but
// attempted is true). No-op if already Armed.
func Activate(pos *dca.Position, p dca.Parameters, bar dca.Bar, currentPrice float64) (activated bool, attempted bool) {
	if pos.TrailingSell != nil {
		return false, false
	}
	if len(pos.Lots) == 0 {
		return false, false
	}
	avgCost := pos.AverageCost()
	if currentPrice <= avgCost {
		return false, false
	}
	if !pos.HasExtrema {
		return false, false
	}

	aSell, pSell, bypassProfit := effectiveRates(pos, p, currentPrice)
	if currentPrice < pos.RecentBottom*(1+aSell) {
		return false, false
	}
	attempted = true

	req := lotProfitRequirement(pos, p, currentPrice, bypassProfit)
	eligible := eligibleLots(pos, p, currentPrice, req)
	if len(eligible) == 0 {
		return false, true
	}

	tolerance := p.RemainingLotsLossTolerance
	if tolerance == 0 {
		tolerance = defaultRemainingLotsLossTolerance
	}

	lotsToSell := ledger.SelectLifo(pos, eligible, p.MaxLotsToSell)
	if len(lotsToSell) == 0 {
		return false, true
	}

	pos.TrailingSell = &dca.TrailingSell{
		StopPrice:            currentPrice * (1 - pSell),
		LimitPrice:           ledger.WeightedAvgEntry(pos, lotsToSell) * (1 - tolerance),
		HighestPrice:         currentPrice,
		LotIndices:           lotsToSell,
		LotProfitRequirement: req,
		OrderType:            p.TrailingStopOrderType,
		PullbackEffective:    pSell,
	}
	return true, true
}

// Update applies the Armed->Armed ratchet: the stop only ever moves up as
// price makes a new high since activation.
func Update(pos *dca.Position, currentPrice float64) {
	ts := pos.TrailingSell
	if ts == nil {
		return
	}
	if currentPrice <= ts.HighestPrice {
		return
	}
	ts.HighestPrice = currentPrice
	newStop := currentPrice * (1 - ts.PullbackEffective)
	if newStop > ts.StopPrice {
		ts.StopPrice = newStop
	}
}

// CheckCancellation tears down an Armed trailing-sell stop that is no longer
// profitable against average cost, the optional hook named in bar-ordering
// step 4. Returns true if cancelled.
func CheckCancellation(pos *dca.Position, currentPrice float64) bool {
	ts := pos.TrailingSell
	if ts == nil {
		return false
	}
	if currentPrice <= pos.AverageCost() {
		pos.TrailingSell = nil
		return true
	}
	return false
}

// Triggered reports whether the Armed stop's execution condition is met.
// The final profit check always uses the base p.ProfitRequirement, never
// the frozen ts.LotProfitRequirement: the adaptive-downtrend bypass at
// activation only widens which lots may be frozen into this stop, it does
// not carry through to gate execution. ts.LotProfitRequirement is kept on
// the struct purely as a record of the threshold that admitted the frozen
// lots, for transaction-log/reporting purposes.
func Triggered(pos *dca.Position, p dca.Parameters, currentPrice float64) bool {
	ts := pos.TrailingSell
	if ts == nil {
		return false
	}
	if currentPrice > ts.StopPrice {
		return false
	}
	withinLimit := ts.OrderType == dca.OrderTypeMarket || currentPrice >= ts.LimitPrice
	if !withinLimit {
		return false
	}
	return currentPrice > pos.AverageCost()*(1+p.ProfitRequirement)
}

// SoldLot describes one lot closed by Execute, for transaction-log reporting.
type SoldLot struct {
	Lot dca.Lot
	Pnl float64
}

// Execute realizes PnL for each frozen lot against its own entry price,
// removes them from the position, and resets trend-tracking state. It must
// only be called after Triggered reports success.
func Execute(pos *dca.Position, currentPrice float64) []SoldLot {
	ts := pos.TrailingSell
	if ts == nil {
		return nil
	}

	sold := make([]SoldLot, 0, len(ts.LotIndices))
	for _, idx := range ts.LotIndices {
		if idx >= len(pos.Lots) {
			continue
		}
		l := pos.Lots[idx]
		pnl := (currentPrice - l.EntryPrice) * l.Shares
		sold = append(sold, SoldLot{Lot: l, Pnl: pnl})
		pos.RealizedPnl += pnl
	}

	ledger.RemoveIndices(pos, ts.LotIndices)

	price := currentPrice
	pos.LastSellPrice = &price
	pos.ConsecutiveSellCount++
	pos.ConsecutiveBuyCount = 0
	pos.RecentPeak = currentPrice
	pos.RecentBottom = currentPrice
	pos.TrailingSell = nil
	pos.LastExecutedPrice = currentPrice
	pos.HasExecuted = true

	return sold
}
