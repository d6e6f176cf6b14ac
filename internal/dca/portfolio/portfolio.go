// Package portfolio implements the Portfolio Simulator (§4.7): a shared
// cash pool intercepting each symbol's would-be BUY, deterministic symbol
// ordering, index-constituency windows, and daily composition snapshots.
// Grounded on the project's former order manager's admission-gate-chain
// pattern (ordered checks, each passing or rejecting with a reason) applied
// here to a single gate -- cash availability -- ahead of the per-symbol
// simulator's own admission chain.
package portfolio

import (
	"sort"
	"time"

	"dcasim/internal/dca"
	"dcasim/internal/dca/simulator"
)

// SymbolInput bundles one symbol's bars, beta-scaled parameters and
// optional index-constituency window for a portfolio run.
type SymbolInput struct {
	Symbol     string
	Bars       []dca.Bar
	Params     dca.Parameters
	Membership *dca.IndexMembership
}

// Config is the shared-capital configuration for a portfolio run.
type Config struct {
	TotalCapital  float64
	MarginPercent float64
}

// DailyComposition is one bar's snapshot of the shared cash pool, per §4.7
// step 4.
type DailyComposition struct {
	Date         time.Time
	Cash         float64
	MarketValues map[string]float64
	Total        float64
}

// Result is the full portfolio-run output: one dca.Position per symbol plus
// the shared bookkeeping the per-symbol Result type does not carry.
type Result struct {
	Positions        map[string]*dca.Position
	Transactions     map[string][]dca.Transaction
	RejectedOrders   []dca.RejectedOrder
	DailyComposition []DailyComposition
	FinalCash        float64
}

// Run drives every symbol's per-symbol simulator bar-by-bar against the
// shared cash pool, per the step ordering of §4.7.
func Run(inputs []SymbolInput, cfg Config) *Result {
	res := &Result{
		Positions:    make(map[string]*dca.Position, len(inputs)),
		Transactions: make(map[string][]dca.Transaction, len(inputs)),
	}

	order := make([]string, len(inputs))
	bySymbol := make(map[string]*SymbolInput, len(inputs))
	for i := range inputs {
		order[i] = inputs[i].Symbol
		bySymbol[inputs[i].Symbol] = &inputs[i]
		res.Positions[inputs[i].Symbol] = &dca.Position{Symbol: inputs[i].Symbol}
	}

	// cash is seeded at the margin-adjusted buying-power ceiling so that the
	// "cash >= lotSizeUsd" gate below is the only enforcement needed to keep
	// deployed capital within totalCapital*(1+marginPercent/100).
	cash := cfg.TotalCapital * (1 + cfg.MarginPercent/100)
	calendar := commonDates(inputs)

	cursor := make(map[string]int, len(inputs))
	barIndex := make(map[string]map[time.Time]int, len(inputs))
	for _, in := range inputs {
		idx := make(map[time.Time]int, len(in.Bars))
		for i, b := range in.Bars {
			idx[b.Date] = i
		}
		barIndex[in.Symbol] = idx
	}

	for _, date := range calendar {
		active := activeSymbols(order, bySymbol, date)

		marketValues := make(map[string]float64, len(active))

		for _, sym := range active {
			in := bySymbol[sym]
			pos := res.Positions[sym]

			bi, ok := barIndex[sym][date]
			if !ok {
				continue
			}
			bar := in.Bars[bi]

			if in.Membership != nil && in.Membership.RemoveDate != nil && !date.Before(*in.Membership.RemoveDate) {
				liquidated := liquidate(pos, bar, &cash)
				res.Transactions[sym] = append(res.Transactions[sym], liquidated...)
				marketValues[sym] = 0
				cursor[sym]++
				continue
			}

			intercept := func(b dca.Bar, cost float64) (bool, *dca.CapitalState) {
				state := &dca.CapitalState{
					Cash:              cash,
					TotalCapital:      cfg.TotalCapital,
					MarginPercent:     cfg.MarginPercent,
					DeployedPerSymbol: deployedPerSymbol(res.Positions),
				}
				if cash >= cost {
					return true, state
				}
				res.RejectedOrders = append(res.RejectedOrders, dca.RejectedOrder{
					Date:         date,
					Symbol:       sym,
					Reason:       dca.ReasonInsufficientCash,
					CapitalState: *state,
				})
				return false, state
			}

			preCash := cash
			txs := simulator.StepBar(pos, bar, in.Params, &cash, intercept)
			_ = preCash

			res.Transactions[sym] = append(res.Transactions[sym], txs...)
			marketValues[sym] = pos.MarketValue(bar.AdjClose)
			cursor[sym]++
		}

		total := cash
		for _, v := range marketValues {
			total += v
		}
		res.DailyComposition = append(res.DailyComposition, DailyComposition{
			Date:         date,
			Cash:         cash,
			MarketValues: marketValues,
			Total:        total,
		})
	}

	res.FinalCash = cash
	return res
}

// liquidate closes every open lot at bar's close, credits the proceeds back
// to the shared cash pool, and records a synthetic liquidation row per lot,
// per the removeDate rule of §4.7.
func liquidate(pos *dca.Position, bar dca.Bar, cash *float64) []dca.Transaction {
	if len(pos.Lots) == 0 {
		return nil
	}
	price := bar.AdjClose
	txs := make([]dca.Transaction, 0, len(pos.Lots))
	for _, l := range pos.Lots {
		pnl := (price - l.EntryPrice) * l.Shares
		pos.RealizedPnl += pnl
		*cash += price * l.Shares
		txs = append(txs, dca.Transaction{
			Date:                 bar.Date,
			Type:                 dca.TxSyntheticLiquidation,
			Price:                price,
			Shares:               l.Shares,
			Value:                price * l.Shares,
			Pnl:                  &pnl,
			LotsAfterTransaction: 0,
		})
	}
	pos.Lots = nil
	pos.TrailingBuy = nil
	pos.TrailingSell = nil
	return txs
}

// deployedPerSymbol snapshots current cost basis by symbol for a
// CapitalState.
func deployedPerSymbol(positions map[string]*dca.Position) map[string]float64 {
	out := make(map[string]float64, len(positions))
	for sym, pos := range positions {
		out[sym] = pos.TotalCostBasis()
	}
	return out
}

// commonDates returns the sorted union of every active symbol's bar dates.
// A bar date qualifies even if only one symbol's calendar has it; inactive
// symbols on a given date are simply skipped for that bar.
func commonDates(inputs []SymbolInput) []time.Time {
	seen := make(map[time.Time]bool)
	for _, in := range inputs {
		for _, b := range in.Bars {
			seen[b.Date] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// activeSymbols filters order down to symbols whose membership window
// covers date (or that have no membership window at all), preserving the
// configured deterministic order.
func activeSymbols(order []string, bySymbol map[string]*SymbolInput, date time.Time) []string {
	active := make([]string, 0, len(order))
	for _, sym := range order {
		in := bySymbol[sym]
		if in.Membership == nil {
			active = append(active, sym)
			continue
		}
		if date.Before(in.Membership.AddDate) {
			continue
		}
		if in.Membership.RemoveDate != nil && date.After(*in.Membership.RemoveDate) {
			continue
		}
		active = append(active, sym)
	}
	return active
}
