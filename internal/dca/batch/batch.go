// Package batch implements the Batch Runner (§4.8): Cartesian-product
// parameter sweeps executed in parallel, ranked by a configurable metric,
// with progress reported over the project's event bus and cooperative
// cancellation between combinations. Grounded on the project's worker-pool
// sizing convention (GOMAXPROCS-capped, caller-overridable) and its event
// bus for async progress instead of a bespoke channel type.
package batch

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"dcasim/internal/dca"
	"dcasim/internal/dca/metrics"
	"dcasim/internal/dca/simulator"
	"dcasim/internal/events"
)

// ParameterRanges maps scalar parameter names to candidate values and flag
// names to candidate booleans. Only the fields present are swept; every
// other field of the base Parameters is held constant across the batch.
type ParameterRanges struct {
	GridIntervalPercent          []float64
	ProfitRequirement            []float64
	TrailingBuyActivationPercent []float64
	TrailingBuyReboundPercent    []float64
	TrailingSellActivationPercent []float64
	TrailingSellPullbackPercent  []float64
	GridConsecutiveIncrement     []float64
	LotSizeUsd                   []float64
	MaxLots                      []int
	MaxLotsToSell                []int

	EnableConsecutiveIncrementalBuyGrid   []bool
	EnableConsecutiveIncrementalSellProfit []bool
	EnableDynamicGrid                     []bool
	EnableAverageBasedSell                 []bool
	EnableAdaptiveTrailingSell             []bool
	MomentumBasedBuy                       []bool
	MomentumBasedSell                      []bool
}

// Config configures one batch run.
type Config struct {
	RunID         string
	Base          dca.Parameters
	Ranges        ParameterRanges
	Symbols       []string
	Bars          map[string][]dca.Bar
	RankMetric    string // field name on metrics.Summary; defaults to TotalReturnPercent
	MaxWorkers    int
	Bus           *events.EventBus
}

// CombinationResult is one parameter combination's outcome against one
// symbol.
type CombinationResult struct {
	Symbol     string
	Parameters dca.Parameters
	Summary    metrics.Summary
	Err        error
}

// Output is the Batch Runner's full response contract.
type Output struct {
	Top     []CombinationResult
	All     []CombinationResult
	Summary map[string]CombinationResult // bestByMetric, keyed by symbol
}

// Run enumerates the Cartesian product of cfg.Ranges crossed with
// cfg.Symbols, runs the per-symbol simulator for every combination in
// parallel, and ranks the results. ctx supports cooperative cancellation
// between combinations; in-flight runs complete.
func Run(ctx context.Context, cfg Config) *Output {
	combinations := expand(cfg.Base, cfg.Ranges)

	type job struct {
		symbol string
		params dca.Parameters
	}
	jobs := make([]job, 0, len(combinations)*len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		for _, p := range combinations {
			jobs = append(jobs, job{symbol: sym, params: p})
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if cfg.MaxWorkers > 0 && cfg.MaxWorkers < workers {
		workers = cfg.MaxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]CombinationResult, len(jobs))
	var completed int
	var mu sync.Mutex

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				j := jobs[idx]
				res := runOne(j.symbol, j.params, cfg.Bars[j.symbol])
				results[idx] = res

				mu.Lock()
				completed++
				n := completed
				mu.Unlock()

				if cfg.Bus != nil {
					cfg.Bus.PublishBatchProgress(cfg.RunID, n, len(jobs))
					if res.Err != nil {
						cfg.Bus.PublishBatchCombinationFailed(cfg.RunID, paramsToMap(res.Parameters), res.Err)
					}
				}
			}
		}()
	}

dispatch:
	for idx := range jobs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobCh <- idx:
		}
	}
	close(jobCh)
	wg.Wait()

	out := &Output{Summary: make(map[string]CombinationResult)}
	for _, r := range results {
		if r.Symbol == "" && r.Err == nil {
			continue // zero-value slot skipped when cancelled before dispatch
		}
		out.All = append(out.All, r)
	}

	metric := cfg.RankMetric
	if metric == "" {
		metric = "TotalReturnPercent"
	}
	ranked := make([]CombinationResult, 0, len(out.All))
	for _, r := range out.All {
		if r.Err == nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankValue(ranked[i].Summary, metric) > rankValue(ranked[j].Summary, metric)
	})

	topN := 10
	if topN > len(ranked) {
		topN = len(ranked)
	}
	out.Top = ranked[:topN]

	for _, r := range ranked {
		best, ok := out.Summary[r.Symbol]
		if !ok || rankValue(r.Summary, metric) > rankValue(best.Summary, metric) {
			out.Summary[r.Symbol] = r
		}
	}

	if cfg.Bus != nil {
		succeeded := len(ranked)
		cfg.Bus.PublishBatchCompleted(cfg.RunID, len(jobs), succeeded, len(jobs)-succeeded)
	}

	return out
}

func runOne(symbol string, p dca.Parameters, bars []dca.Bar) CombinationResult {
	if err := dca.ValidateParameters(p); err != nil {
		return CombinationResult{Symbol: symbol, Parameters: p, Err: err}
	}
	if err := dca.ValidateBars(bars); err != nil {
		return CombinationResult{Symbol: symbol, Parameters: p, Err: err}
	}

	result := simulator.Run(bars, p, 0, nil)
	summary := metrics.Compute(metrics.Dates(bars), result.DailyEquityCurve, result.DailyDeployedCapital, result.Transactions, bars)

	return CombinationResult{Symbol: symbol, Parameters: p, Summary: summary}
}

func rankValue(s metrics.Summary, metric string) float64 {
	switch metric {
	case "CAGRPercent":
		return s.CAGRPercent
	case "SharpeRatio":
		return s.SharpeRatio
	case "WinRatePercent":
		return s.WinRatePercent
	case "CapitalEfficiency":
		return s.CapitalEfficiency
	case "MaxDrawdownPercent":
		return -s.MaxDrawdownPercent // lower drawdown ranks better
	default:
		return s.TotalReturnPercent
	}
}

func paramsToMap(p dca.Parameters) map[string]interface{} {
	return map[string]interface{}{
		"gridIntervalPercent":          p.GridIntervalPercent,
		"profitRequirement":            p.ProfitRequirement,
		"trailingBuyActivationPercent": p.TrailingBuyActivationPercent,
		"trailingSellActivationPercent": p.TrailingSellActivationPercent,
		"lotSizeUsd":                   p.LotSizeUsd,
		"maxLots":                      p.MaxLots,
	}
}

// expand generates the Cartesian product of every non-empty field in r,
// defaulting unsped fields to the single value from base.
func expand(base dca.Parameters, r ParameterRanges) []dca.Parameters {
	combos := []dca.Parameters{base}

	combos = crossFloat(combos, r.GridIntervalPercent, func(p *dca.Parameters, v float64) { p.GridIntervalPercent = v })
	combos = crossFloat(combos, r.ProfitRequirement, func(p *dca.Parameters, v float64) { p.ProfitRequirement = v })
	combos = crossFloat(combos, r.TrailingBuyActivationPercent, func(p *dca.Parameters, v float64) { p.TrailingBuyActivationPercent = v })
	combos = crossFloat(combos, r.TrailingBuyReboundPercent, func(p *dca.Parameters, v float64) { p.TrailingBuyReboundPercent = v })
	combos = crossFloat(combos, r.TrailingSellActivationPercent, func(p *dca.Parameters, v float64) { p.TrailingSellActivationPercent = v })
	combos = crossFloat(combos, r.TrailingSellPullbackPercent, func(p *dca.Parameters, v float64) { p.TrailingSellPullbackPercent = v })
	combos = crossFloat(combos, r.GridConsecutiveIncrement, func(p *dca.Parameters, v float64) { p.GridConsecutiveIncrement = v })
	combos = crossFloat(combos, r.LotSizeUsd, func(p *dca.Parameters, v float64) { p.LotSizeUsd = v })
	combos = crossInt(combos, r.MaxLots, func(p *dca.Parameters, v int) { p.MaxLots = v })
	combos = crossInt(combos, r.MaxLotsToSell, func(p *dca.Parameters, v int) { p.MaxLotsToSell = v })

	combos = crossBool(combos, r.EnableConsecutiveIncrementalBuyGrid, func(p *dca.Parameters, v bool) { p.EnableConsecutiveIncrementalBuyGrid = v })
	combos = crossBool(combos, r.EnableConsecutiveIncrementalSellProfit, func(p *dca.Parameters, v bool) { p.EnableConsecutiveIncrementalSellProfit = v })
	combos = crossBool(combos, r.EnableDynamicGrid, func(p *dca.Parameters, v bool) { p.EnableDynamicGrid = v })
	combos = crossBool(combos, r.EnableAverageBasedSell, func(p *dca.Parameters, v bool) { p.EnableAverageBasedSell = v })
	combos = crossBool(combos, r.EnableAdaptiveTrailingSell, func(p *dca.Parameters, v bool) { p.EnableAdaptiveTrailingSell = v })
	combos = crossBool(combos, r.MomentumBasedBuy, func(p *dca.Parameters, v bool) { p.MomentumBasedBuy = v })
	combos = crossBool(combos, r.MomentumBasedSell, func(p *dca.Parameters, v bool) { p.MomentumBasedSell = v })

	return combos
}

func crossFloat(in []dca.Parameters, values []float64, set func(*dca.Parameters, float64)) []dca.Parameters {
	if len(values) == 0 {
		return in
	}
	out := make([]dca.Parameters, 0, len(in)*len(values))
	for _, base := range in {
		for _, v := range values {
			p := base
			set(&p, v)
			out = append(out, p)
		}
	}
	return out
}

func crossInt(in []dca.Parameters, values []int, set func(*dca.Parameters, int)) []dca.Parameters {
	if len(values) == 0 {
		return in
	}
	out := make([]dca.Parameters, 0, len(in)*len(values))
	for _, base := range in {
		for _, v := range values {
			p := base
			set(&p, v)
			out = append(out, p)
		}
	}
	return out
}

func crossBool(in []dca.Parameters, values []bool, set func(*dca.Parameters, bool)) []dca.Parameters {
	if len(values) == 0 {
		return in
	}
	out := make([]dca.Parameters, 0, len(in)*len(values))
	for _, base := range in {
		for _, v := range values {
			p := base
			set(&p, v)
			out = append(out, p)
		}
	}
	return out
}
