package trailingsell

import (
	"testing"
	"time"

	"dcasim/internal/dca"
)

func testBar(price float64) dca.Bar {
	return dca.Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: price, AdjClose: price}
}

func almostEqual(a, b float64) bool {
	const eps = 1e-6
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

// S3: LIFO selection with maxLotsToSell=1 -- two eligible lots, only the
// more recent (higher entry price) one is frozen and sold.
func TestActivate_S3_LifoWithMaxLotsToSellOne(t *testing.T) {
	older := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	pos := &dca.Position{
		Lots: []dca.Lot{
			{EntryPrice: 100, EntryDate: newer, Shares: 10, CostBasis: 1000},
			{EntryPrice: 80, EntryDate: older, Shares: 12.5, CostBasis: 1000},
		},
		RecentBottom: 80,
		HasExtrema:   true,
	}
	p := dca.Parameters{
		TrailingSellActivationPercent: 0.10,
		TrailingSellPullbackPercent:   0.0,
		ProfitRequirement:             0.03,
		MaxLotsToSell:                 1,
		RemainingLotsLossTolerance:    0.05,
	}

	activated, attempted := Activate(pos, p, testBar(105), 105)
	if !attempted || !activated {
		t.Fatalf("expected activation, got activated=%v attempted=%v", activated, attempted)
	}
	if len(pos.TrailingSell.LotIndices) != 1 {
		t.Fatalf("lotIndices = %v, want exactly 1", pos.TrailingSell.LotIndices)
	}
	if pos.Lots[pos.TrailingSell.LotIndices[0]].EntryPrice != 100 {
		t.Errorf("frozen lot entry price = %v, want 100 (the 100 lot, LIFO)", pos.Lots[pos.TrailingSell.LotIndices[0]].EntryPrice)
	}

	sold := Execute(pos, 105)
	if len(sold) != 1 {
		t.Fatalf("sold count = %d, want 1", len(sold))
	}
	wantPnl := (105.0 - 100.0) * 10.0
	if !almostEqual(sold[0].Pnl, wantPnl) {
		t.Errorf("pnl = %v, want %v", sold[0].Pnl, wantPnl)
	}
	if len(pos.Lots) != 1 || pos.Lots[0].EntryPrice != 80 {
		t.Errorf("remaining lots = %+v, want only the 80 lot", pos.Lots)
	}
}

func TestActivate_DoesNotActivateWhenNoEligibleLots(t *testing.T) {
	pos := &dca.Position{
		Lots:         []dca.Lot{{EntryPrice: 100, Shares: 10, CostBasis: 1000}},
		RecentBottom: 95,
		HasExtrema:   true,
	}
	p := dca.Parameters{TrailingSellActivationPercent: 0.10, ProfitRequirement: 0.50}

	activated, attempted := Activate(pos, p, testBar(110), 110)
	if activated {
		t.Fatal("should not activate: no lot clears the 50% profit requirement")
	}
	if !attempted {
		t.Fatal("expected attempted=true: the activation threshold itself was crossed")
	}
}

func TestUpdate_RatchetsUpOnlyOnNewHigh(t *testing.T) {
	pos := &dca.Position{
		Lots:         []dca.Lot{{EntryPrice: 100, Shares: 10, CostBasis: 1000}},
		RecentBottom: 90,
		HasExtrema:   true,
	}
	p := dca.Parameters{TrailingSellActivationPercent: 0.10, TrailingSellPullbackPercent: 0.05, ProfitRequirement: 0.0, MaxLotsToSell: 1}
	Activate(pos, p, testBar(110), 110)
	if pos.TrailingSell == nil {
		t.Fatal("expected activation")
	}
	stop := pos.TrailingSell.StopPrice

	Update(pos, 105) // lower than highestPrice, no ratchet
	if pos.TrailingSell.StopPrice != stop {
		t.Errorf("stop moved on a lower price: %v -> %v", stop, pos.TrailingSell.StopPrice)
	}

	Update(pos, 120)
	want := 120 * 0.95
	if !almostEqual(pos.TrailingSell.StopPrice, want) {
		t.Errorf("stop = %v, want %v after a new high", pos.TrailingSell.StopPrice, want)
	}
}

func TestCheckCancellation_TearsDownWhenNoLongerProfitable(t *testing.T) {
	pos := &dca.Position{
		Lots:         []dca.Lot{{EntryPrice: 100, Shares: 10, CostBasis: 1000}},
		RecentBottom: 90,
		HasExtrema:   true,
	}
	p := dca.Parameters{TrailingSellActivationPercent: 0.10, ProfitRequirement: 0.0, MaxLotsToSell: 1}
	Activate(pos, p, testBar(110), 110)
	if pos.TrailingSell == nil {
		t.Fatal("expected activation")
	}

	if CheckCancellation(pos, 105) {
		t.Fatal("cancelled while still above average cost")
	}
	if !CheckCancellation(pos, 95) {
		t.Fatal("expected cancellation once price fell to or below average cost")
	}
	if pos.TrailingSell != nil {
		t.Error("expected trailing sell to be torn down")
	}
}
