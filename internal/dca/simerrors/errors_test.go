package simerrors

import "testing"

func TestNew_ErrorStringOmitsDetailsWhenEmpty(t *testing.T) {
	err := New(KindDataUnavailable, "no bars for symbol")
	want := "DataUnavailable: no bars for symbol"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewf_FormatsTheMessage(t *testing.T) {
	err := Newf(KindInsufficientData, "bars span %d days, need %d", 10, 30)
	want := "InsufficientData: bars span 10 days, need 30"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWithDetail_DoesNotMutateTheOriginal(t *testing.T) {
	base := New(KindRuntimeInvariantViolation, "lot ledger went negative")
	derived := base.WithDetail("lots", -1)

	if len(base.Details) != 0 {
		t.Errorf("original error's Details mutated: %+v", base.Details)
	}
	if derived.Details["lots"] != -1 {
		t.Errorf("derived error missing detail: %+v", derived.Details)
	}
}

func TestWithDetail_ChainsMultipleDetails(t *testing.T) {
	err := New(KindCombinationFailed, "combination errored").
		WithDetail("symbol", "X").
		WithDetail("gridIntervalPercent", 0.10)

	if err.Details["symbol"] != "X" || err.Details["gridIntervalPercent"] != 0.10 {
		t.Errorf("expected both details to survive chaining, got %+v", err.Details)
	}
}

func TestInvalidParameter_SetsFieldAndValueDetails(t *testing.T) {
	err := InvalidParameter("gridIntervalPercent", -0.1, "must be non-negative")

	if err.Kind != KindInvalidParameters {
		t.Errorf("kind = %v, want KindInvalidParameters", err.Kind)
	}
	if err.Details["field"] != "gridIntervalPercent" {
		t.Errorf("details[field] = %v, want gridIntervalPercent", err.Details["field"])
	}
	if err.Details["value"] != -0.1 {
		t.Errorf("details[value] = %v, want -0.1", err.Details["value"])
	}
}

func TestAsSimError_UnwrapsAndRejectsPlainErrors(t *testing.T) {
	se := New(KindDataUnavailable, "x")
	if got, ok := AsSimError(se); !ok || got != se {
		t.Errorf("expected AsSimError to unwrap a *SimError, got %v ok=%v", got, ok)
	}

	plain := ErrRunNotFound
	if _, ok := AsSimError(plain); ok {
		t.Error("expected AsSimError to reject a plain sentinel error")
	}
}
