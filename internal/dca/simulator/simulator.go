// Package simulator implements the Per-Symbol Simulator (§4.6): the fixed,
// order-sensitive bar loop that drives the trailing-buy and trailing-sell
// state machines, the lot ledger, and the daily equity/deployed-capital
// series. Grounded on the project's former backtest.Backtest.Run loop
// (fetch bars, walk them in order, check exits before entries, track an
// equity curve) generalized from a single open position and one exit rule
// to the full grid-DCA machine.
package simulator

import (
	"dcasim/internal/dca"
	"dcasim/internal/dca/trailingbuy"
	"dcasim/internal/dca/trailingsell"
)

// BuyIntercept lets a caller (the Portfolio Simulator) approve or reject a
// would-be buy after the per-symbol admission checks have already passed,
// per §4.7 step 3. The default used by a standalone single-symbol run
// always approves -- single-symbol mode has no shared-capital constraint
// and no "cash >= 0" invariant; capitalState is nil when unused.
type BuyIntercept func(bar dca.Bar, cost float64) (approved bool, capitalState *dca.CapitalState)

// AlwaysApprove is the default BuyIntercept for single-symbol runs.
func AlwaysApprove(dca.Bar, float64) (bool, *dca.CapitalState) { return true, nil }

// Result is the per-symbol simulation output before metrics are computed.
// The caller already holds the bars slice passed to Run, so Result does not
// duplicate dates/closes -- metrics.Compute takes bars directly.
type Result struct {
	Position             *dca.Position
	Transactions         []dca.Transaction
	Cash                 float64
	DailyEquityCurve     []float64
	DailyDeployedCapital []float64
}

// Run drives pos through every bar in order and returns the full result.
// initialCapital seeds the cash bookkeeping baseline (defaults to
// p.LotSizeUsd when zero, matching the convention that a single-symbol run
// is priced as if funded for exactly one lot at a time).
func Run(bars []dca.Bar, p dca.Parameters, initialCapital float64, intercept BuyIntercept) *Result {
	if intercept == nil {
		intercept = AlwaysApprove
	}
	if initialCapital == 0 {
		initialCapital = p.LotSizeUsd
	}

	pos := &dca.Position{Symbol: ""}
	cash := initialCapital

	res := &Result{Position: pos}

	for i, bar := range bars {
		price := bar.AdjClose
		txs := StepBar(pos, bar, p, &cash, intercept)
		res.Transactions = append(res.Transactions, txs...)

		if i == 0 {
			pos.ReferencePrice = price
		}

		equity := cash + pos.MarketValue(price)
		res.DailyEquityCurve = append(res.DailyEquityCurve, equity)
		res.DailyDeployedCapital = append(res.DailyDeployedCapital, pos.TotalCostBasis())
	}

	res.Cash = cash
	pos.DailyEquityCurve = res.DailyEquityCurve
	pos.DailyDeployedCapital = res.DailyDeployedCapital
	return res
}

// StepBar executes exactly the bar-ordering contract of §4.6 for one bar and
// returns the transaction-log rows (including rejections) it produced.
func StepBar(pos *dca.Position, bar dca.Bar, p dca.Parameters, cash *float64, intercept BuyIntercept) []dca.Transaction {
	price := bar.AdjClose
	var txs []dca.Transaction

	// Step 1: first-bar extrema seed.
	if !pos.HasExtrema {
		pos.RecentPeak = price
		pos.RecentBottom = price
		pos.HasExtrema = true
	}

	// Step 2-3: trailing-sell activation, then update.
	sellActivated, sellAttempted := trailingsell.Activate(pos, p, bar, price)
	if sellAttempted && !sellActivated {
		txs = append(txs, rejectedSellTx(bar, price, pos, dca.ReasonNoEligibleLots))
	}
	trailingsell.Update(pos, price)

	// Step 4: optional no-longer-profitable cancellation hook.
	trailingsell.CheckCancellation(pos, price)

	// Step 5: trailing-sell execution.
	sellExecuted := false
	if trailingsell.Triggered(pos, p, price) {
		sold := trailingsell.Execute(pos, price)
		sellExecuted = len(sold) > 0
		for _, s := range sold {
			pnl := s.Pnl
			*cash += price * s.Lot.Shares
			txs = append(txs, dca.Transaction{
				Date:                 bar.Date,
				Type:                 dca.TxSell,
				Price:                price,
				Shares:               s.Lot.Shares,
				Value:                price * s.Lot.Shares,
				Pnl:                  &pnl,
				LotsAfterTransaction: len(pos.Lots),
			})
		}
	}

	// Step 6: trailing-buy cancellation (limit-only).
	trailingbuy.CheckCancellation(pos, price)

	// Step 7: trailing-buy execution against a stop armed on a prior bar.
	buyExecuted := false
	if trailingbuy.Triggered(pos, price) {
		tx, executed := executeBuy(pos, bar, price, p, cash, intercept)
		txs = append(txs, tx)
		buyExecuted = executed
	}

	// Step 8: if no BUY executed this bar, advance the trailing-buy machine,
	// then re-check the trigger against the same bar's price. An
	// Idle->Armed activation or an Armed->Armed trail-down can both put
	// stopPrice at or through currentPrice in the same step that moved it
	// there (trailingBuyReboundPercent == 0 makes a fresh stop sit exactly
	// at currentPrice; a ratcheting stop can cross it the same day it
	// trails). The trailing-sell side gets this for free because its own
	// activation and update (steps 2-3) already run before its own
	// execution check (step 5); mirroring that here keeps a same-day
	// trigger from waiting an idle bar to be noticed.
	if !buyExecuted {
		if pos.TrailingBuy == nil {
			trailingbuy.Activate(pos, p, price)
		} else {
			trailingbuy.Update(pos, p, price)
		}
		if trailingbuy.Triggered(pos, price) {
			tx, executed := executeBuy(pos, bar, price, p, cash, intercept)
			txs = append(txs, tx)
			buyExecuted = executed
		}
	}

	_ = sellExecuted

	// Step 10: extrema advance after all same-day decisions (step 9, the
	// daily-series append, is handled by the caller once per bar).
	if price > pos.RecentPeak {
		pos.RecentPeak = price
	}
	if price < pos.RecentBottom {
		pos.RecentBottom = price
	}

	return txs
}

// executeBuy runs buy-admission and, on approval, the capital intercept for
// a trailing-buy stop that has just triggered, returning the single
// transaction row it produced (a BUY or a REJECTED_BUY) and whether a lot
// was actually added.
func executeBuy(pos *dca.Position, bar dca.Bar, price float64, p dca.Parameters, cash *float64, intercept BuyIntercept) (dca.Transaction, bool) {
	ok, reason, gridDetail := trailingbuy.Admission(pos, p, price)
	if !ok {
		tx := dca.Transaction{
			Date:                 bar.Date,
			Type:                 dca.TxRejectedBuy,
			Price:                price,
			LotsAfterTransaction: len(pos.Lots),
			Reason:               &reason,
		}
		if gridDetail != nil {
			tx.GridSpacingDetail = gridDetail
		}
		if p.ResetExtremaOnRejection {
			pos.RecentPeak = price
			pos.RecentBottom = price
		}
		return tx, false
	}

	approved, capitalState := intercept(bar, p.LotSizeUsd)
	if !approved {
		reason := dca.ReasonInsufficientCash
		_ = capitalState
		if p.ResetExtremaOnRejection {
			pos.RecentPeak = price
			pos.RecentBottom = price
		}
		return dca.Transaction{
			Date:                 bar.Date,
			Type:                 dca.TxRejectedBuy,
			Price:                price,
			LotsAfterTransaction: len(pos.Lots),
			Reason:               &reason,
		}, false
	}

	lot := trailingbuy.Execute(pos, bar, price, p.LotSizeUsd)
	*cash -= lot.CostBasis
	return dca.Transaction{
		Date:                 bar.Date,
		Type:                 dca.TxBuy,
		Price:                price,
		Shares:               lot.Shares,
		Value:                lot.CostBasis,
		LotsAfterTransaction: len(pos.Lots),
	}, true
}

func rejectedSellTx(bar dca.Bar, price float64, pos *dca.Position, reason dca.RejectReason) dca.Transaction {
	return dca.Transaction{
		Date:                 bar.Date,
		Type:                 dca.TxRejectedSell,
		Price:                price,
		LotsAfterTransaction: len(pos.Lots),
		Reason:               &reason,
	}
}
