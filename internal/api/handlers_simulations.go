package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dcasim/internal/dca"
	"dcasim/internal/dca/batch"
	"dcasim/internal/dca/beta"
	"dcasim/internal/dca/metrics"
	"dcasim/internal/dca/portfolio"
	"dcasim/internal/dca/simerrors"
	"dcasim/internal/dca/simulator"
	"dcasim/internal/logging"
)

// handleRunSingle runs one symbol through the per-symbol simulator and
// returns its transaction log and metrics summary.
// POST /api/v1/simulations/single
func (s *Server) handleRunSingle(c *gin.Context) {
	var req singleSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid startDate (use YYYY-MM-DD)")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid endDate (use YYYY-MM-DD)")
		return
	}

	runID := uuid.New().String()
	log := logging.RunContext(runID, "single", req.Symbol)
	s.bus.PublishRunStarted(runID, "single")

	params := req.Parameters.ToParameters()
	if err := dca.ValidateParameters(params); err != nil {
		s.bus.PublishRunFailed(runID, err)
		respondSimError(c, err)
		return
	}

	bars, err := s.provider.Bars(c.Request.Context(), req.Symbol, start, end)
	if err != nil {
		log.WithError(err).Warn("failed to resolve bars")
		s.bus.PublishRunFailed(runID, err)
		respondSimError(c, err)
		return
	}
	if err := dca.ValidateBars(bars); err != nil {
		s.bus.PublishRunFailed(runID, err)
		respondSimError(c, err)
		return
	}

	params = scaleIfRequested(c.Request.Context(), s, req.Symbol, params, log)

	result := simulator.Run(bars, params, 0, nil)
	summary := metrics.Compute(metrics.Dates(bars), result.DailyEquityCurve, result.DailyDeployedCapital, result.Transactions, bars)

	s.bus.PublishRunCompleted(runID, summary.TotalReturnPercent)

	successResponse(c, gin.H{
		"runID":        runID,
		"symbol":       req.Symbol,
		"transactions": transactionsToJSON(result.Transactions),
		"summary":      summary,
		"finalCash":    result.Cash,
	})
}

// handleRunBatch launches a Cartesian-product parameter sweep asynchronously
// and returns a runID immediately; progress streams over the event bus and
// the terminal result is polled via handleGetBatchRun.
// POST /api/v1/simulations/batch
func (s *Server) handleRunBatch(c *gin.Context) {
	var req batchSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid startDate (use YYYY-MM-DD)")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid endDate (use YYYY-MM-DD)")
		return
	}

	base := req.Parameters.ToParameters()
	if err := dca.ValidateParameters(base); err != nil {
		respondSimError(c, err)
		return
	}

	barsBySymbol := make(map[string][]dca.Bar, len(req.Symbols))
	for _, sym := range req.Symbols {
		bars, err := s.provider.Bars(c.Request.Context(), sym, start, end)
		if err != nil {
			errorResponse(c, http.StatusUnprocessableEntity, "no bars available for "+sym+": "+err.Error())
			return
		}
		barsBySymbol[sym] = bars
	}

	runID := uuid.New().String()
	ranges := toParameterRanges(req.ParameterRanges)
	log := logging.BatchContext(runID, len(req.Symbols))

	s.runs.start(runID)
	s.bus.PublishRunStarted(runID, "batch")

	go func() {
		ctx := context.Background()
		out := batch.Run(ctx, batch.Config{
			RunID:      runID,
			Base:       base,
			Ranges:     ranges,
			Symbols:    req.Symbols,
			Bars:       barsBySymbol,
			RankMetric: req.RankBy,
			MaxWorkers: req.MaxWorkers,
			Bus:        s.bus,
		})
		log.Info("batch run completed", "combinations", len(out.All))
		s.runs.complete(runID, out)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"runID":  runID,
			"status": string(batchRunRunning),
		},
	})
}

// handleGetBatchRun polls a previously started batch run.
// GET /api/v1/simulations/batch/:runID
func (s *Server) handleGetBatchRun(c *gin.Context) {
	runID := c.Param("runID")
	run, ok := s.runs.get(runID)
	if !ok {
		errorResponse(c, http.StatusNotFound, simerrors.ErrRunNotFound.Error())
		return
	}

	switch run.Status {
	case batchRunRunning:
		successResponse(c, gin.H{"runID": runID, "status": string(run.Status)})
	case batchRunFailed:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"runID":  runID,
				"status": string(run.Status),
				"error":  run.Err.Error(),
			},
		})
	default:
		successResponse(c, gin.H{
			"runID":  runID,
			"status": string(run.Status),
			"top":    combinationsToJSON(run.Output.Top),
			"all":    combinationsToJSON(run.Output.All),
			"summary": combinationSummaryToJSON(run.Output.Summary),
		})
	}
}

// handleRunPortfolio runs a shared-capital multi-symbol simulation.
// POST /api/v1/simulations/portfolio
func (s *Server) handleRunPortfolio(c *gin.Context) {
	var req portfolioSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := dca.ValidateMarginPercent(req.MarginPercent); err != nil {
		respondSimError(c, err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid startDate (use YYYY-MM-DD)")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid endDate (use YYYY-MM-DD)")
		return
	}

	runID := uuid.New().String()
	log := logging.PortfolioContext(runID, req.Symbols, req.TotalCapital)
	s.bus.PublishRunStarted(runID, "portfolio")

	inputs := make([]portfolio.SymbolInput, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		bars, err := s.provider.Bars(c.Request.Context(), sym, start, end)
		if err != nil {
			log.WithError(err).Warn("failed to resolve bars", "symbol", sym)
			s.bus.PublishRunFailed(runID, err)
			respondSimError(c, err)
			return
		}
		if err := dca.ValidateBars(bars); err != nil {
			s.bus.PublishRunFailed(runID, err)
			respondSimError(c, err)
			return
		}

		params := symbolParameters(req, sym)
		if req.EnableBetaScaling {
			params.EnableBetaScaling = true
		}
		if err := dca.ValidateParameters(params); err != nil {
			s.bus.PublishRunFailed(runID, err)
			respondSimError(c, err)
			return
		}
		params = scaleIfRequested(c.Request.Context(), s, sym, params, log)

		windows, err := s.provider.Membership(c.Request.Context(), sym)
		if err != nil {
			log.WithError(err).Warn("failed to resolve membership", "symbol", sym)
		}
		var membership *dca.IndexMembership
		if len(windows) > 0 {
			membership = &windows[len(windows)-1]
		}

		inputs = append(inputs, portfolio.SymbolInput{
			Symbol:     sym,
			Bars:       bars,
			Params:     params,
			Membership: membership,
		})
	}

	result := portfolio.Run(inputs, portfolio.Config{
		TotalCapital:  req.TotalCapital,
		MarginPercent: req.MarginPercent,
	})

	for _, rej := range result.RejectedOrders {
		s.bus.PublishPortfolioRejection(runID, rej.Symbol, string(rej.Reason))
	}

	s.bus.PublishRunCompleted(runID, 0)

	successResponse(c, gin.H{
		"runID":            runID,
		"transactions":     transactionsBySymbolToJSON(result.Transactions),
		"rejectedOrders":   rejectedOrdersToJSON(result.RejectedOrders),
		"dailyComposition": dailyCompositionToJSON(result.DailyComposition),
		"finalCash":        result.FinalCash,
	})
}

func symbolParameters(req portfolioSimulationRequest, symbol string) dca.Parameters {
	if per, ok := req.PerSymbolParameters[symbol]; ok {
		return per.ToParameters()
	}
	if req.Parameters != nil {
		return req.Parameters.ToParameters()
	}
	return dca.Parameters{}
}

func scaleIfRequested(ctx context.Context, s *Server, symbol string, params dca.Parameters, log *logging.Logger) dca.Parameters {
	if !params.EnableBetaScaling {
		return params
	}
	b, err := s.provider.Beta(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("failed to resolve beta, running unscaled", "symbol", symbol)
		return params
	}
	return beta.Scale(params, b, log)
}

func respondSimError(c *gin.Context, err error) {
	if se, ok := simerrors.AsSimError(err); ok {
		status := http.StatusUnprocessableEntity
		switch se.Kind {
		case simerrors.KindInvalidParameters, simerrors.KindInsufficientData:
			status = http.StatusBadRequest
		case simerrors.KindDataUnavailable:
			status = http.StatusBadGateway
		case simerrors.KindRuntimeInvariantViolation:
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": true, "kind": string(se.Kind), "message": se.Message, "details": se.Details})
		return
	}
	errorResponse(c, http.StatusUnprocessableEntity, err.Error())
}

func toParameterRanges(d ParameterRangesDTO) batch.ParameterRanges {
	return batch.ParameterRanges{
		GridIntervalPercent:                    d.GridIntervalPercent,
		ProfitRequirement:                       d.ProfitRequirement,
		TrailingBuyActivationPercent:            d.TrailingBuyActivationPercent,
		TrailingBuyReboundPercent:               d.TrailingBuyReboundPercent,
		TrailingSellActivationPercent:           d.TrailingSellActivationPercent,
		TrailingSellPullbackPercent:             d.TrailingSellPullbackPercent,
		GridConsecutiveIncrement:                d.GridConsecutiveIncrement,
		LotSizeUsd:                              d.LotSizeUsd,
		MaxLots:                                 d.MaxLots,
		MaxLotsToSell:                           d.MaxLotsToSell,
		EnableConsecutiveIncrementalBuyGrid:     d.EnableConsecutiveIncrementalBuyGrid,
		EnableConsecutiveIncrementalSellProfit:  d.EnableConsecutiveIncrementalSellProfit,
		EnableDynamicGrid:                       d.EnableDynamicGrid,
		EnableAverageBasedSell:                  d.EnableAverageBasedSell,
		EnableAdaptiveTrailingSell:              d.EnableAdaptiveTrailingSell,
		MomentumBasedBuy:                        d.MomentumBasedBuy,
		MomentumBasedSell:                       d.MomentumBasedSell,
	}
}

func transactionToJSON(t dca.Transaction) gin.H {
	h := gin.H{
		"date":                 t.Date.Format("2006-01-02"),
		"type":                 string(t.Type),
		"price":                t.Price,
		"shares":               t.Shares,
		"value":                t.Value,
		"lotsAfterTransaction": t.LotsAfterTransaction,
	}
	if t.Pnl != nil {
		h["pnl"] = *t.Pnl
	}
	if t.Reason != nil {
		h["reason"] = string(*t.Reason)
	}
	if t.GridSpacingDetail != nil {
		h["gridSpacingDetail"] = gin.H{
			"requiredGrid":  t.GridSpacingDetail.RequiredGrid,
			"closestLot":    t.GridSpacingDetail.ClosestLot,
			"actualSpacing": t.GridSpacingDetail.ActualSpacing,
		}
	}
	return h
}

func transactionsToJSON(txs []dca.Transaction) []gin.H {
	out := make([]gin.H, len(txs))
	for i, t := range txs {
		out[i] = transactionToJSON(t)
	}
	return out
}

func transactionsBySymbolToJSON(bySymbol map[string][]dca.Transaction) map[string][]gin.H {
	out := make(map[string][]gin.H, len(bySymbol))
	for sym, txs := range bySymbol {
		out[sym] = transactionsToJSON(txs)
	}
	return out
}

func rejectedOrdersToJSON(orders []dca.RejectedOrder) []gin.H {
	out := make([]gin.H, len(orders))
	for i, o := range orders {
		out[i] = gin.H{
			"date":   o.Date.Format("2006-01-02"),
			"symbol": o.Symbol,
			"reason": string(o.Reason),
			"capitalState": gin.H{
				"cash":              o.CapitalState.Cash,
				"totalCapital":      o.CapitalState.TotalCapital,
				"marginPercent":     o.CapitalState.MarginPercent,
				"deployedPerSymbol": o.CapitalState.DeployedPerSymbol,
			},
		}
	}
	return out
}

func dailyCompositionToJSON(rows []portfolio.DailyComposition) []gin.H {
	out := make([]gin.H, len(rows))
	for i, r := range rows {
		out[i] = gin.H{
			"date":         r.Date.Format("2006-01-02"),
			"cash":         r.Cash,
			"marketValues": r.MarketValues,
			"total":        r.Total,
		}
	}
	return out
}

func combinationToJSON(r batch.CombinationResult) gin.H {
	h := gin.H{
		"symbol":     r.Symbol,
		"parameters": r.Parameters,
	}
	if r.Err != nil {
		h["error"] = r.Err.Error()
	} else {
		h["summary"] = r.Summary
	}
	return h
}

func combinationsToJSON(rs []batch.CombinationResult) []gin.H {
	out := make([]gin.H, len(rs))
	for i, r := range rs {
		out[i] = combinationToJSON(r)
	}
	return out
}

func combinationSummaryToJSON(bySymbol map[string]batch.CombinationResult) []gin.H {
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	out := make([]gin.H, len(symbols))
	for i, sym := range symbols {
		out[i] = combinationToJSON(bySymbol[sym])
	}
	return out
}
