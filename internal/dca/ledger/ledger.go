// Package ledger implements the Lot Ledger (§4.2): append-only lot creation,
// LIFO lot selection for sells, and mark-to-market helpers. Grounded on the
// lot/tranche accounting shape of lotter's op_lot.go (a Lot carries its own
// date, inventory and cost basis; a queue supports ordered consumption) and
// on the Position type of the project's former backtest.Position, now
// generalized from a single open position to an append/remove-able slice of
// lots.
package ledger

import (
	"sort"

	"dcasim/internal/dca"
)

// AddLot appends a new lot funded by cashBudget at entryPrice and returns it.
// The ledger itself is cash-agnostic: callers (the per-symbol or portfolio
// simulator) are responsible for refusing the buy before calling AddLot if
// capital is unavailable.
func AddLot(pos *dca.Position, entryDate dca.Bar, entryPrice, cashBudget float64) dca.Lot {
	lot := dca.Lot{
		EntryDate:  entryDate.Date,
		EntryPrice: entryPrice,
		Shares:     cashBudget / entryPrice,
	}
	lot.CostBasis = lot.EntryPrice * lot.Shares
	pos.Lots = append(pos.Lots, lot)
	return lot
}

// RemoveAt removes the lot at index i, preserving the relative order of the
// remaining lots (insertion order matters for LIFO tie-breaks).
func RemoveAt(pos *dca.Position, i int) {
	pos.Lots = append(pos.Lots[:i], pos.Lots[i+1:]...)
}

// RemoveIndices removes the lots at the given indices (which must be
// distinct and refer to pos.Lots as it stood before any removal), preserving
// the relative order of survivors.
func RemoveIndices(pos *dca.Position, indices []int) {
	remove := make(map[int]bool, len(indices))
	for _, i := range indices {
		remove[i] = true
	}
	kept := pos.Lots[:0:0]
	for i, l := range pos.Lots {
		if !remove[i] {
			kept = append(kept, l)
		}
	}
	pos.Lots = kept
}

// SelectLifo sorts the eligible lot indices by descending entry price
// (ties broken by more recent entry date, then by insertion order) and
// returns up to maxLotsToSell of them. eligible is a slice of indices into
// pos.Lots.
func SelectLifo(pos *dca.Position, eligible []int, maxLotsToSell int) []int {
	sorted := make([]int, len(eligible))
	copy(sorted, eligible)

	sort.SliceStable(sorted, func(a, b int) bool {
		la, lb := pos.Lots[sorted[a]], pos.Lots[sorted[b]]
		if la.EntryPrice != lb.EntryPrice {
			return la.EntryPrice > lb.EntryPrice
		}
		if !la.EntryDate.Equal(lb.EntryDate) {
			return la.EntryDate.After(lb.EntryDate)
		}
		return sorted[a] < sorted[b]
	})

	n := maxLotsToSell
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	return sorted[:n]
}

// WeightedAvgEntry returns the share-weighted average entry price of the
// lots at the given indices, used to derive the trailing-sell limit price.
func WeightedAvgEntry(pos *dca.Position, indices []int) float64 {
	var totalCost, totalShares float64
	for _, i := range indices {
		l := pos.Lots[i]
		totalCost += l.CostBasis
		totalShares += l.Shares
	}
	if totalShares <= 0 {
		return 0
	}
	return totalCost / totalShares
}
