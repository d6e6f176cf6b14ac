// Package beta implements the Beta & Parameter Scaler (§4.1): derives a
// single betaFactor from a symbol's beta and a coefficient, then scales the
// six rate parameters that describe trading aggressiveness. Grounded on the
// project's risk.Manager method-dispatch style (CalculatePositionSize
// switches on a configured method string) and its warn-rather-than-reject
// posture for out-of-band risk inputs.
package beta

import (
	"dcasim/internal/dca"
	"dcasim/internal/logging"
)

// Scale derives betaFactor = beta*coefficient and applies it to the six rate
// parameters in p, clamping each scaled result into [0, 1). If
// enableBetaScaling is false or b is nil, p is returned unchanged.
//
// Warnings (never errors) are logged for: beta outside [0.1, 5], any scaled
// result >= 0.5, or any input rate < 0. Per DESIGN.md, out-of-range betas are
// never clamped -- only flagged; callers may pre-clamp upstream.
func Scale(p dca.Parameters, b *dca.Beta, log *logging.Logger) dca.Parameters {
	if !p.EnableBetaScaling || b == nil {
		return p
	}
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("beta_scaler")

	if b.Value < 0.1 || b.Value > 5 {
		log.Warn("beta outside recommended range [0.1, 5]", "beta", b.Value)
	}

	betaFactor := b.Value * p.BetaCoefficient

	scaled := p
	scaled.ProfitRequirement = scaleRate(log, "profitRequirement", p.ProfitRequirement, betaFactor)
	scaled.GridIntervalPercent = scaleRate(log, "gridIntervalPercent", p.GridIntervalPercent, betaFactor)
	scaled.TrailingBuyActivationPercent = scaleRate(log, "trailingBuyActivationPercent", p.TrailingBuyActivationPercent, betaFactor)
	scaled.TrailingBuyReboundPercent = scaleRate(log, "trailingBuyReboundPercent", p.TrailingBuyReboundPercent, betaFactor)
	scaled.TrailingSellActivationPercent = scaleRate(log, "trailingSellActivationPercent", p.TrailingSellActivationPercent, betaFactor)
	scaled.TrailingSellPullbackPercent = scaleRate(log, "trailingSellPullbackPercent", p.TrailingSellPullbackPercent, betaFactor)
	return scaled
}

func scaleRate(log *logging.Logger, name string, input, betaFactor float64) float64 {
	if input < 0 {
		log.Warn("negative input rate passed to beta scaler", "param", name, "value", input)
	}
	scaled := input * betaFactor
	if scaled < 0 {
		scaled = 0
	}
	if scaled >= 1 {
		scaled = 0.999999999
	}
	if scaled >= 0.5 {
		log.Warn("beta-scaled parameter crossed 0.5", "param", name, "scaled", scaled)
	}
	return scaled
}
