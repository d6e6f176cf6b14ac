package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleGetBars is a thin pass-through to the market data provider for
// chart rendering.
// GET /api/v1/symbols/:symbol/bars?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *Server) handleGetBars(c *gin.Context) {
	symbol := c.Param("symbol")
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		errorResponse(c, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseDate(startStr)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid start (use YYYY-MM-DD)")
		return
	}
	end, err := parseDate(endStr)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid end (use YYYY-MM-DD)")
		return
	}

	bars, err := s.provider.Bars(c.Request.Context(), symbol, start, end)
	if err != nil {
		respondSimError(c, err)
		return
	}

	out := make([]gin.H, len(bars))
	for i, b := range bars {
		out[i] = gin.H{
			"date":     b.Date.Format("2006-01-02"),
			"open":     b.Open,
			"high":     b.High,
			"low":      b.Low,
			"close":    b.Close,
			"adjClose": b.AdjClose,
			"volume":   b.Volume,
		}
	}

	successResponse(c, gin.H{"symbol": symbol, "bars": out})
}
