package ledger

import (
	"testing"
	"time"

	"dcasim/internal/dca"
)

func TestAddLot(t *testing.T) {
	pos := &dca.Position{}
	bar := dca.Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	lot := AddLot(pos, bar, 50, 1000)

	if lot.Shares != 20 {
		t.Errorf("shares = %v, want 20", lot.Shares)
	}
	if lot.CostBasis != 1000 {
		t.Errorf("costBasis = %v, want 1000", lot.CostBasis)
	}
	if len(pos.Lots) != 1 {
		t.Fatalf("lot count = %d, want 1", len(pos.Lots))
	}
}

func TestRemoveIndices_PreservesOrderOfSurvivors(t *testing.T) {
	pos := &dca.Position{Lots: []dca.Lot{
		{EntryPrice: 100}, {EntryPrice: 90}, {EntryPrice: 80}, {EntryPrice: 70},
	}}

	RemoveIndices(pos, []int{1, 3})

	if len(pos.Lots) != 2 {
		t.Fatalf("lot count = %d, want 2", len(pos.Lots))
	}
	if pos.Lots[0].EntryPrice != 100 || pos.Lots[1].EntryPrice != 80 {
		t.Errorf("survivors = %+v, want [100 80]", pos.Lots)
	}
}

// S3: LIFO selection with maxLotsToSell=1 picks the most recent (highest
// entry price, in an up market) lot among eligible lots.
func TestSelectLifo_PicksHighestEntryPriceFirst(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := now.AddDate(0, 0, -1)
	pos := &dca.Position{Lots: []dca.Lot{
		{EntryPrice: 80, EntryDate: earlier, Shares: 12.5, CostBasis: 1000},
		{EntryPrice: 100, EntryDate: now, Shares: 10, CostBasis: 1000},
	}}

	selected := SelectLifo(pos, []int{0, 1}, 1)

	if len(selected) != 1 {
		t.Fatalf("selected count = %d, want 1", len(selected))
	}
	if pos.Lots[selected[0]].EntryPrice != 100 {
		t.Errorf("selected lot entry price = %v, want 100", pos.Lots[selected[0]].EntryPrice)
	}
}

func TestSelectLifo_TieBreaksByMoreRecentDateThenInsertionOrder(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pos := &dca.Position{Lots: []dca.Lot{
		{EntryPrice: 100, EntryDate: d1},
		{EntryPrice: 100, EntryDate: d2},
	}}

	selected := SelectLifo(pos, []int{0, 1}, 1)

	if len(selected) != 1 || selected[0] != 1 {
		t.Fatalf("selected = %v, want [1] (more recent date wins the tie)", selected)
	}
}

func TestWeightedAvgEntry(t *testing.T) {
	pos := &dca.Position{Lots: []dca.Lot{
		{EntryPrice: 100, Shares: 10, CostBasis: 1000},
		{EntryPrice: 80, Shares: 10, CostBasis: 800},
	}}

	avg := WeightedAvgEntry(pos, []int{0, 1})
	if avg != 90 {
		t.Errorf("weighted avg = %v, want 90", avg)
	}
}
