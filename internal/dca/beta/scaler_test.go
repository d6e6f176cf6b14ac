package beta

import (
	"testing"

	"dcasim/internal/dca"
)

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func TestScale_DisabledReturnsUnchanged(t *testing.T) {
	p := dca.Parameters{EnableBetaScaling: false, GridIntervalPercent: 0.10}
	out := Scale(p, &dca.Beta{Value: 2}, nil)
	if out.GridIntervalPercent != 0.10 {
		t.Errorf("expected unchanged parameters when scaling disabled, got %+v", out)
	}
}

func TestScale_NilBetaReturnsUnchanged(t *testing.T) {
	p := dca.Parameters{EnableBetaScaling: true, GridIntervalPercent: 0.10}
	out := Scale(p, nil, nil)
	if out.GridIntervalPercent != 0.10 {
		t.Errorf("expected unchanged parameters with a nil beta, got %+v", out)
	}
}

func TestScale_AppliesBetaFactorToAllSixRates(t *testing.T) {
	p := dca.Parameters{
		EnableBetaScaling:              true,
		BetaCoefficient:                0.5,
		ProfitRequirement:              0.10,
		GridIntervalPercent:            0.10,
		TrailingBuyActivationPercent:   0.10,
		TrailingBuyReboundPercent:      0.10,
		TrailingSellActivationPercent:  0.10,
		TrailingSellPullbackPercent:    0.10,
	}
	out := Scale(p, &dca.Beta{Value: 2}, nil)

	// betaFactor = 2 * 0.5 = 1.0, so every rate is unchanged.
	want := 0.10
	if !almostEqual(out.ProfitRequirement, want) ||
		!almostEqual(out.GridIntervalPercent, want) ||
		!almostEqual(out.TrailingBuyActivationPercent, want) ||
		!almostEqual(out.TrailingBuyReboundPercent, want) ||
		!almostEqual(out.TrailingSellActivationPercent, want) ||
		!almostEqual(out.TrailingSellPullbackPercent, want) {
		t.Errorf("expected every rate scaled by factor 1.0, got %+v", out)
	}
}

func TestScale_ClampsUpperBoundInsteadOfOverflowing(t *testing.T) {
	p := dca.Parameters{EnableBetaScaling: true, BetaCoefficient: 1, GridIntervalPercent: 0.8}
	out := Scale(p, &dca.Beta{Value: 3}, nil) // betaFactor = 3, 0.8*3 = 2.4

	if out.GridIntervalPercent >= 1 {
		t.Errorf("scaled rate = %v, want clamped below 1", out.GridIntervalPercent)
	}
}

func TestScale_NegativeScaledResultClampsToZero(t *testing.T) {
	p := dca.Parameters{EnableBetaScaling: true, BetaCoefficient: -1, GridIntervalPercent: 0.10}
	out := Scale(p, &dca.Beta{Value: 2}, nil) // betaFactor = -2, 0.10*-2 = -0.2

	if out.GridIntervalPercent != 0 {
		t.Errorf("scaled rate = %v, want clamped to 0", out.GridIntervalPercent)
	}
}

func TestScale_OutOfRangeBetaIsNeverClampedOnlyWarned(t *testing.T) {
	p := dca.Parameters{EnableBetaScaling: true, BetaCoefficient: 1, GridIntervalPercent: 0.01}
	out := Scale(p, &dca.Beta{Value: 10}, nil) // beta outside [0.1, 5], but still applied as-is

	want := 0.01 * 10
	if !almostEqual(out.GridIntervalPercent, want) {
		t.Errorf("expected the out-of-range beta applied unclamped, got %v want %v", out.GridIntervalPercent, want)
	}
}
