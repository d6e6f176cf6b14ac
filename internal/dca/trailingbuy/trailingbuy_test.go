package trailingbuy

import (
	"testing"
	"time"

	"dcasim/internal/dca"
)

func testBar(price float64) dca.Bar {
	return dca.Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: price, AdjClose: price}
}

func TestActivate_CrossesThresholdFromRecentPeak(t *testing.T) {
	pos := &dca.Position{RecentPeak: 100, RecentBottom: 100}
	p := dca.Parameters{TrailingBuyActivationPercent: 0.10, TrailingBuyReboundPercent: 0.02, TrailingStopOrderType: dca.OrderTypeLimit}

	if Activate(pos, p, 95) {
		t.Fatal("activated at a 5% pullback against a 10% threshold")
	}
	if !Activate(pos, p, 90) {
		t.Fatal("expected activation at a 10% pullback")
	}
	if pos.TrailingBuy == nil {
		t.Fatal("expected an armed trailing buy")
	}
	wantStop := 90 * 1.02
	if pos.TrailingBuy.StopPrice != wantStop {
		t.Errorf("stopPrice = %v, want %v", pos.TrailingBuy.StopPrice, wantStop)
	}
	if pos.TrailingBuy.RecentPeakReference != 100 {
		t.Errorf("recentPeakReference = %v, want 100", pos.TrailingBuy.RecentPeakReference)
	}
}

func TestUpdate_OnlyTrailsDown(t *testing.T) {
	pos := &dca.Position{RecentPeak: 100}
	p := dca.Parameters{TrailingBuyReboundPercent: 0.0}
	Activate(pos, p, 90)
	stop := pos.TrailingBuy.StopPrice

	Update(pos, p, 95) // price rose; candidate (95) is above stopPrice (90), must not raise it
	if pos.TrailingBuy.StopPrice != stop {
		t.Errorf("stop moved on a price rise: %v -> %v", stop, pos.TrailingBuy.StopPrice)
	}

	Update(pos, p, 85) // price fell further; candidate (85) is below stopPrice (90), trails down
	if pos.TrailingBuy.StopPrice != 85 {
		t.Errorf("stopPrice = %v, want 85 after trailing down", pos.TrailingBuy.StopPrice)
	}
}

func TestCheckCancellation_LimitOnlyWhenPriceRunsAway(t *testing.T) {
	pos := &dca.Position{RecentPeak: 100}
	p := dca.Parameters{TrailingBuyActivationPercent: 0.10, TrailingStopOrderType: dca.OrderTypeLimit}
	Activate(pos, p, 90)

	if CheckCancellation(pos, 99) {
		t.Fatal("cancelled while price stayed at or below the frozen peak reference")
	}
	if !CheckCancellation(pos, 101) {
		t.Fatal("expected cancellation once price ran past the frozen peak reference")
	}
	if pos.TrailingBuy != nil {
		t.Fatal("expected trailing buy to be torn down after cancellation")
	}
}

func TestCheckCancellation_NeverCancelsMarketOrders(t *testing.T) {
	pos := &dca.Position{RecentPeak: 100}
	p := dca.Parameters{TrailingBuyActivationPercent: 0.10, TrailingStopOrderType: dca.OrderTypeMarket}
	Activate(pos, p, 90)

	if CheckCancellation(pos, 150) {
		t.Fatal("market orders must never cancel on price recovery")
	}
	if pos.TrailingBuy == nil {
		t.Fatal("market trailing buy should remain armed")
	}
}

// S5: momentum-buy gate rejects a buy with negative unrealized PnL even when
// every other condition passes.
func TestAdmission_MomentumGateRejectsNegativeUnrealizedPnl(t *testing.T) {
	pos := &dca.Position{Lots: []dca.Lot{{EntryPrice: 100, Shares: 10, CostBasis: 1000}}}
	p := dca.Parameters{MomentumBasedBuy: true, MaxLots: 10, GridIntervalPercent: 0}

	ok, reason, _ := Admission(pos, p, 90)
	if ok {
		t.Fatal("expected rejection on the momentum gate")
	}
	if reason != dca.ReasonMomentumPnlGate {
		t.Errorf("reason = %v, want momentum_pnl_gate", reason)
	}
}

func TestAdmission_MaxLotsGate(t *testing.T) {
	pos := &dca.Position{Lots: []dca.Lot{{EntryPrice: 100, Shares: 1, CostBasis: 100}, {EntryPrice: 90, Shares: 1, CostBasis: 90}}}
	p := dca.Parameters{MaxLots: 2}

	ok, reason, _ := Admission(pos, p, 50)
	if ok {
		t.Fatal("expected rejection on the max-lots gate")
	}
	if reason != dca.ReasonMaxLots {
		t.Errorf("reason = %v, want max_lots", reason)
	}
}

func TestAdmission_MaxLotsGateBypassedUnderMomentumBuy(t *testing.T) {
	pos := &dca.Position{Lots: []dca.Lot{{EntryPrice: 100, Shares: 1, CostBasis: 100}, {EntryPrice: 90, Shares: 1, CostBasis: 90}}}
	p := dca.Parameters{MaxLots: 2, MomentumBasedBuy: true, GridIntervalPercent: 0.5}

	// unrealizedPnl at 200 is positive, so the momentum gate passes and the
	// max-lots gate is the one under test here (disabled by the flag).
	ok, reason, _ := Admission(pos, p, 200)
	if !ok {
		t.Fatalf("expected admission to pass, got reason %v", reason)
	}
}

func TestAdmission_DescendingEntryRule(t *testing.T) {
	last := 95.0
	pos := &dca.Position{LastBuyPrice: &last}
	p := dca.Parameters{EnableConsecutiveIncrementalBuyGrid: true, MaxLots: 10}

	ok, reason, _ := Admission(pos, p, 96)
	if ok {
		t.Fatal("expected rejection: new price is not below the last buy price")
	}
	if reason != dca.ReasonDescendingEntry {
		t.Errorf("reason = %v, want descending_entry", reason)
	}

	ok, _, _ = Admission(pos, p, 94)
	if !ok {
		t.Fatal("expected admission once the new price descends below the last buy price")
	}
}

func TestExecute_ResetsExtremaAndCounters(t *testing.T) {
	pos := &dca.Position{RecentPeak: 100, RecentBottom: 80, ConsecutiveSellCount: 3}
	lot := Execute(pos, testBar(90), 90, 1000)

	if lot.Shares != 1000.0/90.0 {
		t.Errorf("shares = %v, want %v", lot.Shares, 1000.0/90.0)
	}
	if pos.RecentPeak != 90 || pos.RecentBottom != 90 {
		t.Errorf("extrema after execution = (%v, %v), want (90, 90)", pos.RecentPeak, pos.RecentBottom)
	}
	if pos.ConsecutiveBuyCount != 1 {
		t.Errorf("consecutiveBuyCount = %d, want 1", pos.ConsecutiveBuyCount)
	}
	if pos.ConsecutiveSellCount != 0 {
		t.Errorf("consecutiveSellCount = %d, want 0", pos.ConsecutiveSellCount)
	}
	if pos.TrailingBuy != nil {
		t.Error("expected trailing buy to reset to Idle after execution")
	}
}
