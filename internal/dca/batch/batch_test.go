package batch

import (
	"context"
	"testing"
	"time"

	"dcasim/internal/dca"
	"dcasim/internal/events"
)

func dayBars(closes ...float64) []dca.Bar {
	out := make([]dca.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = dca.Bar{Date: start.AddDate(0, 0, i), Close: c, AdjClose: c}
	}
	return out
}

func TestExpand_CartesianProductOfRanges(t *testing.T) {
	base := dca.Parameters{LotSizeUsd: 1000, MaxLots: 5}
	ranges := ParameterRanges{
		GridIntervalPercent: []float64{0.05, 0.10},
		MaxLots:             []int{5, 10},
	}

	combos := expand(base, ranges)

	if len(combos) != 4 {
		t.Fatalf("combination count = %d, want 4 (2 grid values x 2 maxLots values)", len(combos))
	}
	seen := make(map[[2]float64]bool)
	for _, c := range combos {
		seen[[2]float64{c.GridIntervalPercent, float64(c.MaxLots)}] = true
	}
	for _, g := range []float64{0.05, 0.10} {
		for _, m := range []int{5, 10} {
			if !seen[[2]float64{g, float64(m)}] {
				t.Errorf("missing combination grid=%v maxLots=%v", g, m)
			}
		}
	}
}

func TestExpand_UnspecifiedFieldsHoldBaseValue(t *testing.T) {
	base := dca.Parameters{LotSizeUsd: 2500, MaxLots: 7}
	combos := expand(base, ParameterRanges{GridIntervalPercent: []float64{0.05, 0.10}})

	for _, c := range combos {
		if c.LotSizeUsd != 2500 || c.MaxLots != 7 {
			t.Errorf("unspecified fields drifted: %+v", c)
		}
	}
}

func TestRun_RanksBySpecifiedMetricAndReportsProgress(t *testing.T) {
	closes := []float64{100, 90, 110}
	for len(closes) < dca.MinTradingDays {
		closes = append(closes, 110)
	}
	bars := map[string][]dca.Bar{"X": dayBars(closes...)}
	bus := events.NewEventBus()

	progressSeen := make(chan struct{}, 1)
	bus.SubscribeAll(func(e events.Event) {
		if e.Type == events.EventBatchProgress {
			select {
			case progressSeen <- struct{}{}:
			default:
			}
		}
	})

	cfg := Config{
		RunID:      "test-run",
		Base:       dca.Parameters{GridIntervalPercent: 0.10, LotSizeUsd: 1000, MaxLots: 10, TrailingStopOrderType: dca.OrderTypeMarket, TrailingBuyReboundPercent: 0, TrailingSellPullbackPercent: 0},
		Ranges:     ParameterRanges{TrailingBuyActivationPercent: []float64{0.05, 0.50}},
		Symbols:    []string{"X"},
		Bars:       bars,
		Bus:        bus,
		RankMetric: "TotalReturnPercent",
	}

	out := Run(context.Background(), cfg)

	if len(out.All) != 2 {
		t.Fatalf("combination count = %d, want 2", len(out.All))
	}
	if len(out.Top) == 0 {
		t.Fatal("expected at least one ranked result in Top")
	}
	best, ok := out.Summary["X"]
	if !ok {
		t.Fatal("expected a bestByMetric entry for symbol X")
	}
	for _, r := range out.All {
		if r.Summary.TotalReturnPercent > best.Summary.TotalReturnPercent {
			t.Errorf("Summary[X] is not actually the best by TotalReturnPercent: %+v beats %+v", r, best)
		}
	}
	select {
	case <-progressSeen:
	case <-time.After(time.Second):
		t.Error("expected at least one batch-progress event")
	}
}

func TestRun_NeverDeadlocksWithoutAProgressConsumer(t *testing.T) {
	cfg := Config{
		Base:    dca.Parameters{LotSizeUsd: 1000, MaxLots: 10},
		Ranges:  ParameterRanges{GridIntervalPercent: []float64{0.05, 0.10, 0.15}},
		Symbols: []string{"X"},
		Bars:    map[string][]dca.Bar{"X": dayBars(100, 95, 90)},
	}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), cfg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch run deadlocked with no progress consumer attached")
	}
}
