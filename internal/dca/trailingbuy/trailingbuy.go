// Package trailingbuy implements the Trailing-Buy State Machine (§4.3).
// Grounded on the project's risk.TrailingStopManager (activation threshold
// from a running extreme, ratchet-only stop updates, a frozen reference
// price captured at activation) and on the trailing-stop state walk in
// other_examples' solana-token-lab strategy/trailing_stop.go (update peak,
// then check exits in a fixed order).
package trailingbuy

import (
	"dcasim/internal/dca"
	"dcasim/internal/dca/grid"
)

// Activate evaluates the Idle->Armed transition. Returns true if it armed.
// No-op (returns false) if already Armed.
func Activate(pos *dca.Position, p dca.Parameters, currentPrice float64) bool {
	if pos.TrailingBuy != nil {
		return false
	}
	activation := 1 - p.TrailingBuyActivationPercent
	if currentPrice > pos.RecentPeak*activation {
		return false
	}
	pos.TrailingBuy = &dca.TrailingBuy{
		StopPrice:           currentPrice * (1 + p.TrailingBuyReboundPercent),
		RecentPeakReference: pos.RecentPeak,
		OrderType:           p.TrailingStopOrderType,
	}
	return true
}

// Update applies the Armed->Armed trailing-down rule: the stop only trails
// to a lower rebound target, never raises back up. No-op if Idle.
func Update(pos *dca.Position, p dca.Parameters, currentPrice float64) {
	tb := pos.TrailingBuy
	if tb == nil {
		return
	}
	candidate := currentPrice * (1 + p.TrailingBuyReboundPercent)
	if candidate < tb.StopPrice {
		tb.StopPrice = candidate
	}
}

// CheckCancellation applies the limit-order-only Armed->Idle cancellation
// rule: if price has recovered past the frozen peak reference, the stop is
// pointless and is torn down. Market orders never cancel this way. Returns
// true if cancelled.
func CheckCancellation(pos *dca.Position, currentPrice float64) bool {
	tb := pos.TrailingBuy
	if tb == nil || tb.OrderType != dca.OrderTypeLimit {
		return false
	}
	if currentPrice > tb.RecentPeakReference {
		pos.TrailingBuy = nil
		return true
	}
	return false
}

// Triggered reports whether the Armed stop's execution condition is met:
// currentPrice has reached the stop and, for limit orders, has not run away
// past the frozen peak reference.
func Triggered(pos *dca.Position, currentPrice float64) bool {
	tb := pos.TrailingBuy
	if tb == nil {
		return false
	}
	if currentPrice < tb.StopPrice {
		return false
	}
	withinLimit := tb.OrderType == dca.OrderTypeMarket || currentPrice <= tb.RecentPeakReference
	return withinLimit
}

// Admission runs the buy-admission gate chain (§4.3) in order, stopping at
// the first violation. ok is true only if every gate passes.
func Admission(pos *dca.Position, p dca.Parameters, currentPrice float64) (ok bool, reason dca.RejectReason, detail *dca.GridSpacingDetail) {
	if !p.MomentumBasedBuy && len(pos.Lots) >= p.MaxLots {
		return false, dca.ReasonMaxLots, nil
	}

	gridOK, _, gridDetail := grid.Check(pos, p, currentPrice)
	if !gridOK {
		return false, dca.ReasonGridSpacing, &gridDetail
	}

	if p.MomentumBasedBuy && len(pos.Lots) >= 1 && pos.UnrealizedPnl(currentPrice) <= 0 {
		return false, dca.ReasonMomentumPnlGate, nil
	}

	if p.EnableConsecutiveIncrementalBuyGrid && pos.LastBuyPrice != nil && currentPrice >= *pos.LastBuyPrice {
		return false, dca.ReasonDescendingEntry, nil
	}

	return true, "", nil
}

// Execute appends a new lot at currentPrice, updates the position's
// consecutive counters and extrema, and resets the trailing-buy stop. It
// must only be called after Triggered and Admission both report success.
func Execute(pos *dca.Position, bar dca.Bar, currentPrice, cashBudget float64) dca.Lot {
	lot := dca.Lot{
		EntryDate:  bar.Date,
		EntryPrice: currentPrice,
		Shares:     cashBudget / currentPrice,
	}
	lot.CostBasis = lot.EntryPrice * lot.Shares
	pos.Lots = append(pos.Lots, lot)

	price := currentPrice
	pos.LastBuyPrice = &price
	pos.ConsecutiveBuyCount++
	pos.ConsecutiveSellCount = 0
	pos.RecentPeak = currentPrice
	pos.RecentBottom = currentPrice
	pos.TrailingBuy = nil
	pos.LastExecutedPrice = currentPrice
	pos.HasExecuted = true

	return lot
}
