// Package metrics implements the Metrics & Comparison suite (§4.9): return,
// CAGR, drawdown, Sharpe, win rate, capital efficiency and the buy-and-hold
// baseline used by every run summary. Grounded on the project's former
// backtest.Metrics (the same named fields, computed once at the end of a
// run from an equity curve and a trade list) generalized from a single
// long-only trade list to the grid-DCA transaction log.
package metrics

import (
	"math"
	"time"

	"dcasim/internal/dca"
)

// Summary is the full metrics contract reported alongside a run's
// transaction log.
type Summary struct {
	TotalReturnPercent   float64
	CAGRPercent          float64
	MaxDrawdownPercent   float64
	SharpeRatio          float64
	WinRatePercent       float64
	Volatility           float64
	CapitalEfficiency    float64
	BuyAndHoldFinalValue float64
	BuyAndHoldPercent    float64
	OutperformanceValue  float64
	OutperformancePercent float64
	TradeCount           int
	WinCount             int
	LossCount            int
	FinalEquity          float64
	InitialEquity        float64
}

// Dates extracts the date column from a bar slice, for callers assembling
// the dates argument to Compute.
func Dates(bars []dca.Bar) []time.Time {
	dates := make([]time.Time, len(bars))
	for i, b := range bars {
		dates[i] = b.Date
	}
	return dates
}

// Compute derives the full summary from a daily equity curve, the matching
// daily deployed-capital series, the realized transaction log and the raw
// bars (for the buy-and-hold baseline). dates must be the same length and
// order as equityCurve.
func Compute(dates []time.Time, equityCurve, deployedCapital []float64, txs []dca.Transaction, bars []dca.Bar) Summary {
	var s Summary
	if len(equityCurve) == 0 {
		return s
	}

	s.InitialEquity = equityCurve[0]
	s.FinalEquity = equityCurve[len(equityCurve)-1]
	if s.InitialEquity != 0 {
		s.TotalReturnPercent = (s.FinalEquity - s.InitialEquity) / s.InitialEquity * 100
	}

	s.CAGRPercent = cagr(dates, s.InitialEquity, s.FinalEquity)
	s.MaxDrawdownPercent = maxDrawdown(equityCurve)
	s.SharpeRatio, s.Volatility = sharpeAndVolatility(equityCurve)
	s.WinRatePercent, s.WinCount, s.LossCount, s.TradeCount = winRate(txs)
	s.CapitalEfficiency = capitalEfficiency(deployedCapital)
	s.BuyAndHoldFinalValue, s.BuyAndHoldPercent = buyAndHold(bars, s.InitialEquity)
	s.OutperformanceValue = s.FinalEquity - s.BuyAndHoldFinalValue
	s.OutperformancePercent = s.TotalReturnPercent - s.BuyAndHoldPercent

	return s
}

// cagr annualizes the total return using the trading-day count / 252
// convention. Returns 0 for runs spanning fewer than two bars.
func cagr(dates []time.Time, initial, final float64) float64 {
	if len(dates) < 2 || initial <= 0 {
		return 0
	}
	years := float64(len(dates)) / 252
	if years <= 0 {
		return 0
	}
	if final <= 0 {
		return -100
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// maxDrawdown is the largest peak-to-trough decline observed in the equity
// curve, expressed as a positive percentage.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > worst {
			worst = dd
		}
	}
	return worst * 100
}

// sharpeAndVolatility computes the annualized Sharpe ratio and the
// annualized volatility (stdev of daily equity-curve returns, scaled by
// sqrt(252)) together since both derive from the same return series and
// sample (n-1) standard deviation, assuming a zero risk-free rate and 252
// trading days/year. Both are 0 when fewer than two return observations
// exist; Sharpe is additionally 0 when the curve has zero variance.
func sharpeAndVolatility(equity []float64) (sharpeRatio, volatility float64) {
	if len(equity) < 3 {
		return 0, 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i]-prev)/prev)
	}
	if len(returns) < 2 {
		return 0, 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	stdev := math.Sqrt(variance)

	volatility = stdev * math.Sqrt(252) * 100
	if stdev == 0 {
		return 0, volatility
	}
	return mean / stdev * math.Sqrt(252), volatility
}

// winRate reports the fraction of realized SELL transactions with positive
// PnL, alongside the raw win/loss/trade counts. Rejected rows and BUYs do
// not count as trades for this purpose.
func winRate(txs []dca.Transaction) (pct float64, wins, losses, total int) {
	for _, t := range txs {
		if t.Type != dca.TxSell || t.Pnl == nil {
			continue
		}
		total++
		if *t.Pnl > 0 {
			wins++
		} else {
			losses++
		}
	}
	if total == 0 {
		return 0, 0, 0, 0
	}
	return float64(wins) / float64(total) * 100, wins, losses, total
}

// capitalEfficiency is mean(dailyDeployedCapital) / max(dailyDeployedCapital),
// the average fraction of the peak deployed capital that was in use.
// Returns 0 when capital was never deployed.
func capitalEfficiency(deployed []float64) float64 {
	if len(deployed) == 0 {
		return 0
	}
	sum, max := 0.0, 0.0
	for _, d := range deployed {
		sum += d
		if d > max {
			max = d
		}
	}
	if max == 0 {
		return 0
	}
	mean := sum / float64(len(deployed))
	return mean / max
}

// buyAndHold is the finalValue and percent return of deploying initialEquity
// entirely into the first bar's close and holding through the last bar, the
// baseline the strategy is compared against.
func buyAndHold(bars []dca.Bar, initialEquity float64) (finalValue, percent float64) {
	if len(bars) < 2 || initialEquity <= 0 {
		return 0, 0
	}
	entry := bars[0].AdjClose
	if entry <= 0 {
		return 0, 0
	}
	shares := initialEquity / entry
	finalValue = shares * bars[len(bars)-1].AdjClose
	percent = (finalValue - initialEquity) / initialEquity * 100
	return finalValue, percent
}
