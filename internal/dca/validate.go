package dca

import "dcasim/internal/dca/simerrors"

// ValidateParameters enforces §7's InvalidParameters rules. The run must not
// start if this returns a non-nil error.
func ValidateParameters(p Parameters) error {
	nonNegative := map[string]float64{
		"gridIntervalPercent":           p.GridIntervalPercent,
		"profitRequirement":             p.ProfitRequirement,
		"trailingBuyActivationPercent":  p.TrailingBuyActivationPercent,
		"trailingBuyReboundPercent":     p.TrailingBuyReboundPercent,
		"trailingSellActivationPercent": p.TrailingSellActivationPercent,
		"trailingSellPullbackPercent":   p.TrailingSellPullbackPercent,
		"gridConsecutiveIncrement":      p.GridConsecutiveIncrement,
		"lotSizeUsd":                    p.LotSizeUsd,
	}
	for field, v := range nonNegative {
		if v < 0 {
			return simerrors.InvalidParameter(field, v, "must be non-negative")
		}
	}

	if p.GridIntervalPercent <= 0 {
		return simerrors.InvalidParameter("gridIntervalPercent", p.GridIntervalPercent, "must be > 0")
	}
	stops := map[string]float64{
		"trailingBuyActivationPercent":  p.TrailingBuyActivationPercent,
		"trailingBuyReboundPercent":     p.TrailingBuyReboundPercent,
		"trailingSellActivationPercent": p.TrailingSellActivationPercent,
		"trailingSellPullbackPercent":   p.TrailingSellPullbackPercent,
	}
	for field, v := range stops {
		if v >= 1 {
			return simerrors.InvalidParameter(field, v, "must be < 1")
		}
	}
	if p.MaxLots < 0 {
		return simerrors.InvalidParameter("maxLots", p.MaxLots, "must be non-negative")
	}
	if p.MaxLotsToSell < 0 {
		return simerrors.InvalidParameter("maxLotsToSell", p.MaxLotsToSell, "must be non-negative")
	}
	if p.TrailingStopOrderType != OrderTypeLimit && p.TrailingStopOrderType != OrderTypeMarket {
		return simerrors.InvalidParameter("trailingStopOrderType", p.TrailingStopOrderType, "must be limit or market")
	}
	return nil
}

// ValidateMarginPercent enforces the portfolio-level marginPercent bound.
func ValidateMarginPercent(marginPercent float64) error {
	if marginPercent < 0 || marginPercent > 100 {
		return simerrors.InvalidParameter("marginPercent", marginPercent, "must be in [0, 100]")
	}
	return nil
}

// MinTradingDays is the §7 InsufficientData threshold.
const MinTradingDays = 30

// ValidateBars enforces the InsufficientData rule for a single symbol's bar
// slice as seen by the simulator (already windowed to [start,end]).
func ValidateBars(bars []Bar) error {
	if len(bars) < MinTradingDays {
		return simerrors.Newf(simerrors.KindInsufficientData,
			"bars span %d trading days, need at least %d", len(bars), MinTradingDays)
	}
	return nil
}
