// Package dca holds the data model shared by every grid-DCA simulation package:
// bars, lots, positions, run parameters and the transaction log. Subpackages
// (beta, ledger, trailingbuy, trailingsell, grid, simulator, portfolio, batch,
// metrics) all operate on these types so that a Position built by one stage
// can be read and mutated by the next without conversion.
package dca

import "time"

// Bar is one day of OHLC price/volume data for a symbol. adjClose drives all
// decisions; open/high/low/volume are carried through for display only.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// OrderType selects how a trailing stop behaves once triggered.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TransactionType enumerates the ledger event kinds in the output contract.
type TransactionType string

const (
	TxBuy                 TransactionType = "BUY"
	TxSell                TransactionType = "SELL"
	TxRejectedBuy         TransactionType = "REJECTED_BUY"
	TxRejectedSell        TransactionType = "REJECTED_SELL"
	TxSyntheticLiquidation TransactionType = "SYNTHETIC_LIQUIDATION"
)

// RejectReason is the closed set of machine-readable reasons a trade was
// rejected rather than erroring.
type RejectReason string

const (
	ReasonMaxLots         RejectReason = "max_lots"
	ReasonGridSpacing     RejectReason = "grid_spacing"
	ReasonMomentumPnlGate RejectReason = "momentum_pnl_gate"
	ReasonDescendingEntry RejectReason = "descending_entry"
	ReasonInsufficientCash RejectReason = "insufficient_cash"
	ReasonNoEligibleLots  RejectReason = "no_eligible_lots"
	ReasonUnprofitable    RejectReason = "unprofitable"
)

// Lot is a single purchase tranche. CostBasis = EntryPrice * Shares and must
// hold within a 1e-9 relative tolerance for the life of the lot.
type Lot struct {
	EntryDate  time.Time
	EntryPrice float64
	Shares     float64
	CostBasis  float64
}

// Parameters is the full, normalized (fractions, not percents) configuration
// of one simulation run. Values are scaled once by the beta scaler and are
// immutable for the remainder of the run.
type Parameters struct {
	GridIntervalPercent          float64
	ProfitRequirement            float64
	TrailingBuyActivationPercent float64
	TrailingBuyReboundPercent    float64
	TrailingSellActivationPercent float64
	TrailingSellPullbackPercent  float64
	GridConsecutiveIncrement     float64
	LotSizeUsd                   float64
	MaxLots                      int
	MaxLotsToSell                int

	EnableConsecutiveIncrementalBuyGrid  bool
	EnableConsecutiveIncrementalSellProfit bool
	EnableBetaScaling                    bool
	EnableDynamicGrid                    bool
	NormalizeToReference                 bool
	EnableAverageBasedSell                bool
	EnableAdaptiveTrailingSell            bool
	MomentumBasedBuy                      bool
	MomentumBasedSell                     bool
	TrailingStopOrderType                 OrderType

	// ResetExtremaOnRejection resolves the open question in DESIGN.md: whether
	// recentPeak/recentBottom reset when a buy is rejected (e.g. insufficient
	// cash in portfolio mode). Default false: do not reset on rejection.
	ResetExtremaOnRejection bool

	// RemainingLotsLossTolerance sets the trailing-sell limitPrice band below
	// the weighted-average entry of the lots being sold. Default 0.05.
	RemainingLotsLossTolerance float64

	// BetaCoefficient is c in betaFactor = beta*c, consumed by the beta scaler.
	BetaCoefficient float64
}

// TrailingBuy is the Armed state of the trailing-buy state machine. A nil
// *TrailingBuy on a Position means Idle.
type TrailingBuy struct {
	StopPrice           float64
	RecentPeakReference float64
	OrderType           OrderType
}

// TrailingSell is the Armed state of the trailing-sell state machine. A nil
// *TrailingSell on a Position means Idle. LotIndices freezes the LIFO
// selection made at activation as stable indices into Position.Lots; the
// lots themselves may still be mutated by concurrent bars only in the sense
// that the simulator runs one bar at a time, so this is really just a frozen
// identity, not a frozen value.
type TrailingSell struct {
	StopPrice            float64
	LimitPrice           float64
	HighestPrice         float64
	LotIndices           []int
	LotProfitRequirement float64
	OrderType            OrderType
	// PullbackEffective is the (possibly adaptively-narrowed) pullback
	// fraction frozen at activation; Update ratchets StopPrice using this
	// value for the lifetime of this armed stop.
	PullbackEffective float64
}

// Position is the per-symbol mutable simulation state carried bar-to-bar.
type Position struct {
	Symbol string
	Lots   []Lot

	RecentPeak   float64
	RecentBottom float64
	HasExtrema   bool

	LastBuyPrice  *float64
	LastSellPrice *float64

	ConsecutiveBuyCount  int
	ConsecutiveSellCount int

	TrailingBuy  *TrailingBuy
	TrailingSell *TrailingSell

	RealizedPnl          float64
	DailyEquityCurve     []float64
	DailyDeployedCapital []float64

	// ReferencePrice is the first bar's close, used by the dynamic-grid rule
	// when NormalizeToReference is set.
	ReferencePrice float64
	// LastExecutedPrice is used by the dynamic-grid rule otherwise.
	LastExecutedPrice float64
	HasExecuted       bool
}

// TotalShares sums Shares across open lots.
func (p *Position) TotalShares() float64 {
	total := 0.0
	for _, l := range p.Lots {
		total += l.Shares
	}
	return total
}

// TotalCostBasis sums CostBasis across open lots.
func (p *Position) TotalCostBasis() float64 {
	total := 0.0
	for _, l := range p.Lots {
		total += l.CostBasis
	}
	return total
}

// AverageCost is Σ costBasis / Σ shares, or 0 when flat.
func (p *Position) AverageCost() float64 {
	shares := p.TotalShares()
	if shares <= 0 {
		return 0
	}
	return p.TotalCostBasis() / shares
}

// MarketValue is price * total shares.
func (p *Position) MarketValue(price float64) float64 {
	return price * p.TotalShares()
}

// UnrealizedPnl is market value minus cost basis at the given price.
func (p *Position) UnrealizedPnl(price float64) float64 {
	return p.MarketValue(price) - p.TotalCostBasis()
}

// Transaction is one row of the enhanced transaction log (§6 output contract).
type Transaction struct {
	Date                 time.Time
	Type                 TransactionType
	Price                float64
	Shares               float64
	Value                float64
	Pnl                  *float64
	LotsAfterTransaction int
	Reason               *RejectReason
	// GridSpacingDetail is populated on grid_spacing rejections (§4.5): the
	// effective grid required, the nearest lot's entry price, and the actual
	// observed spacing.
	GridSpacingDetail *GridSpacingDetail
}

// GridSpacingDetail records the diagnostic fields required for a grid_spacing
// rejection row.
type GridSpacingDetail struct {
	RequiredGrid   float64
	ClosestLot     float64
	ActualSpacing  float64
}

// RejectedOrder is a portfolio-mode rejection record (§4.7), distinct from a
// Transaction because it can occur without ever reaching the per-symbol
// simulator's own rejection bookkeeping (e.g. insufficient_cash is decided
// by the Portfolio Simulator, not the per-symbol state machines).
type RejectedOrder struct {
	Date         time.Time
	Symbol       string
	Reason       RejectReason
	CapitalState CapitalState
}

// CapitalState snapshots the shared cash pool at the moment of a rejection
// or a daily composition sample.
type CapitalState struct {
	Cash            float64
	TotalCapital    float64
	MarginPercent   float64
	DeployedPerSymbol map[string]float64
}

// Beta is the optional per-symbol beta input to the Beta Scaler.
type Beta struct {
	Value            float64
	IsManualOverride bool
}

// IndexMembership is the optional per-symbol index constituency window.
// A nil RemoveDate means the symbol is still a member.
type IndexMembership struct {
	AddDate    time.Time
	RemoveDate *time.Time
}
