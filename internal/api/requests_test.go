package api

import (
	"testing"

	"dcasim/internal/dca"
)

func TestParametersDTO_ToParameters_DefaultsUnsetOrderTypeToLimit(t *testing.T) {
	d := ParametersDTO{GridIntervalPercent: 0.10}
	p := d.ToParameters()

	if p.TrailingStopOrderType != dca.OrderTypeLimit {
		t.Errorf("order type = %v, want default limit", p.TrailingStopOrderType)
	}
	if p.RemainingLotsLossTolerance != 0.05 {
		t.Errorf("loss tolerance = %v, want default 0.05", p.RemainingLotsLossTolerance)
	}
}

func TestParametersDTO_ToParameters_PreservesExplicitValues(t *testing.T) {
	d := ParametersDTO{
		TrailingStopOrderType:      "market",
		RemainingLotsLossTolerance: 0.10,
		GridIntervalPercent:        0.15,
		MaxLots:                    7,
		MomentumBasedBuy:           true,
	}
	p := d.ToParameters()

	if p.TrailingStopOrderType != dca.OrderTypeMarket {
		t.Errorf("order type = %v, want market", p.TrailingStopOrderType)
	}
	if p.RemainingLotsLossTolerance != 0.10 {
		t.Errorf("loss tolerance = %v, want explicit 0.10", p.RemainingLotsLossTolerance)
	}
	if p.GridIntervalPercent != 0.15 || p.MaxLots != 7 || !p.MomentumBasedBuy {
		t.Errorf("fields not carried through: %+v", p)
	}
}

func TestParseDate_AcceptsISODate(t *testing.T) {
	ts, err := parseDate("2024-03-15")
	if err != nil {
		t.Fatalf("parseDate error = %v", err)
	}
	if ts.Year() != 2024 || ts.Month() != 3 || ts.Day() != 15 {
		t.Errorf("parsed date = %v, want 2024-03-15", ts)
	}
}

func TestParseDate_RejectsMalformedInput(t *testing.T) {
	if _, err := parseDate("not-a-date"); err == nil {
		t.Fatal("expected an error for a malformed date string")
	}
	if _, err := parseDate("03/15/2024"); err == nil {
		t.Fatal("expected an error for a non-ISO date string")
	}
}
