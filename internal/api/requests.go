package api

import (
	"time"

	"dcasim/internal/dca"
)

// ParametersDTO is the wire shape of dca.Parameters. JSON field names follow
// the project's camelCase convention for request/response bodies.
type ParametersDTO struct {
	GridIntervalPercent            float64 `json:"gridIntervalPercent"`
	ProfitRequirement              float64 `json:"profitRequirement"`
	TrailingBuyActivationPercent   float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent      float64 `json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent  float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent    float64 `json:"trailingSellPullbackPercent"`
	GridConsecutiveIncrement       float64 `json:"gridConsecutiveIncrement"`
	LotSizeUsd                     float64 `json:"lotSizeUsd"`
	MaxLots                        int     `json:"maxLots"`
	MaxLotsToSell                  int     `json:"maxLotsToSell"`

	EnableConsecutiveIncrementalBuyGrid   bool `json:"enableConsecutiveIncrementalBuyGrid"`
	EnableConsecutiveIncrementalSellProfit bool `json:"enableConsecutiveIncrementalSellProfit"`
	EnableBetaScaling                      bool `json:"enableBetaScaling"`
	EnableDynamicGrid                      bool `json:"enableDynamicGrid"`
	NormalizeToReference                   bool `json:"normalizeToReference"`
	EnableAverageBasedSell                  bool `json:"enableAverageBasedSell"`
	EnableAdaptiveTrailingSell              bool `json:"enableAdaptiveTrailingSell"`
	MomentumBasedBuy                        bool `json:"momentumBasedBuy"`
	MomentumBasedSell                       bool `json:"momentumBasedSell"`
	TrailingStopOrderType                   string `json:"trailingStopOrderType"`

	ResetExtremaOnRejection    bool    `json:"resetExtremaOnRejection"`
	RemainingLotsLossTolerance float64 `json:"remainingLotsLossTolerance"`
	BetaCoefficient            float64 `json:"betaCoefficient"`
}

// ToParameters converts the wire DTO into the simulation core's Parameters,
// defaulting an unset trailingStopOrderType to limit and an unset
// remainingLotsLossTolerance to 0.05.
func (d ParametersDTO) ToParameters() dca.Parameters {
	orderType := dca.OrderType(d.TrailingStopOrderType)
	if orderType == "" {
		orderType = dca.OrderTypeLimit
	}
	lossTolerance := d.RemainingLotsLossTolerance
	if lossTolerance == 0 {
		lossTolerance = 0.05
	}
	return dca.Parameters{
		GridIntervalPercent:            d.GridIntervalPercent,
		ProfitRequirement:              d.ProfitRequirement,
		TrailingBuyActivationPercent:   d.TrailingBuyActivationPercent,
		TrailingBuyReboundPercent:      d.TrailingBuyReboundPercent,
		TrailingSellActivationPercent:  d.TrailingSellActivationPercent,
		TrailingSellPullbackPercent:    d.TrailingSellPullbackPercent,
		GridConsecutiveIncrement:       d.GridConsecutiveIncrement,
		LotSizeUsd:                     d.LotSizeUsd,
		MaxLots:                        d.MaxLots,
		MaxLotsToSell:                  d.MaxLotsToSell,

		EnableConsecutiveIncrementalBuyGrid:    d.EnableConsecutiveIncrementalBuyGrid,
		EnableConsecutiveIncrementalSellProfit: d.EnableConsecutiveIncrementalSellProfit,
		EnableBetaScaling:                      d.EnableBetaScaling,
		EnableDynamicGrid:                      d.EnableDynamicGrid,
		NormalizeToReference:                   d.NormalizeToReference,
		EnableAverageBasedSell:                 d.EnableAverageBasedSell,
		EnableAdaptiveTrailingSell:             d.EnableAdaptiveTrailingSell,
		MomentumBasedBuy:                       d.MomentumBasedBuy,
		MomentumBasedSell:                      d.MomentumBasedSell,
		TrailingStopOrderType:                  orderType,

		ResetExtremaOnRejection:    d.ResetExtremaOnRejection,
		RemainingLotsLossTolerance: lossTolerance,
		BetaCoefficient:            d.BetaCoefficient,
	}
}

// ParameterRangesDTO is the wire shape of batch.ParameterRanges.
type ParameterRangesDTO struct {
	GridIntervalPercent            []float64 `json:"gridIntervalPercent"`
	ProfitRequirement               []float64 `json:"profitRequirement"`
	TrailingBuyActivationPercent    []float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent       []float64 `json:"trailingBuyReboundPercent"`
	TrailingSellActivationPercent   []float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent     []float64 `json:"trailingSellPullbackPercent"`
	GridConsecutiveIncrement        []float64 `json:"gridConsecutiveIncrement"`
	LotSizeUsd                      []float64 `json:"lotSizeUsd"`
	MaxLots                         []int     `json:"maxLots"`
	MaxLotsToSell                   []int     `json:"maxLotsToSell"`

	EnableConsecutiveIncrementalBuyGrid    []bool `json:"enableConsecutiveIncrementalBuyGrid"`
	EnableConsecutiveIncrementalSellProfit []bool `json:"enableConsecutiveIncrementalSellProfit"`
	EnableDynamicGrid                      []bool `json:"enableDynamicGrid"`
	EnableAverageBasedSell                 []bool `json:"enableAverageBasedSell"`
	EnableAdaptiveTrailingSell             []bool `json:"enableAdaptiveTrailingSell"`
	MomentumBasedBuy                       []bool `json:"momentumBasedBuy"`
	MomentumBasedSell                      []bool `json:"momentumBasedSell"`
}

// singleSimulationRequest is the body of POST /api/v1/simulations/single.
type singleSimulationRequest struct {
	Symbol     string        `json:"symbol" binding:"required"`
	StartDate  string        `json:"startDate" binding:"required"`
	EndDate    string        `json:"endDate" binding:"required"`
	Parameters ParametersDTO `json:"parameters" binding:"required"`
}

// batchSimulationRequest is the body of POST /api/v1/simulations/batch.
type batchSimulationRequest struct {
	Symbols        []string           `json:"symbols" binding:"required"`
	StartDate      string             `json:"startDate" binding:"required"`
	EndDate        string             `json:"endDate" binding:"required"`
	Parameters     ParametersDTO      `json:"parameters" binding:"required"`
	ParameterRanges ParameterRangesDTO `json:"parameterRanges"`
	RankBy         string             `json:"rankBy"`
	MaxWorkers     int                `json:"maxWorkers"`
}

// portfolioSimulationRequest is the body of POST /api/v1/simulations/portfolio.
type portfolioSimulationRequest struct {
	Symbols           []string                 `json:"symbols" binding:"required"`
	StartDate         string                   `json:"startDate" binding:"required"`
	EndDate           string                   `json:"endDate" binding:"required"`
	TotalCapital      float64                  `json:"totalCapital" binding:"required"`
	MarginPercent     float64                  `json:"marginPercent"`
	Parameters        *ParametersDTO           `json:"parameters"`
	PerSymbolParameters map[string]ParametersDTO `json:"perSymbolParameters"`
	EnableBetaScaling bool                     `json:"enableBetaScaling"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
