// Package simerrors defines the simulator's error kinds (§7 of the run
// contract): distinct from rejected-trade reasons, which are ledger events,
// not errors.
package simerrors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of simulator error kinds.
type Kind string

const (
	KindInvalidParameters        Kind = "InvalidParameters"
	KindInsufficientData         Kind = "InsufficientData"
	KindDataUnavailable          Kind = "DataUnavailable"
	KindRuntimeInvariantViolation Kind = "RuntimeInvariantViolation"
	KindCombinationFailed        Kind = "CombinationFailed"
)

// Sentinel errors for conditions with no per-call detail, in the project's
// existing errors.New-package-var style.
var (
	ErrNoOverlappingBars = errors.New("no bars overlap the requested window")
	ErrRunNotFound       = errors.New("simulation run not found")
)

// SimError is a structured error carrying a Kind and arbitrary diagnostic
// detail (the failing parameter name, the last transaction before a runtime
// invariant violation, the combination that failed in a batch, etc).
type SimError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
}

func (e *SimError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Details)
}

// New builds a SimError with no extra detail.
func New(kind Kind, message string) *SimError {
	return &SimError{Kind: kind, Message: message}
}

// Newf builds a SimError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *SimError {
	return &SimError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with an added detail field.
func (e *SimError) WithDetail(key string, value interface{}) *SimError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &SimError{Kind: e.Kind, Message: e.Message, Details: details}
}

// InvalidParameter is a convenience constructor for the most common
// InvalidParameters case: a single out-of-range field.
func InvalidParameter(field string, value interface{}, reason string) *SimError {
	return New(KindInvalidParameters, fmt.Sprintf("%s: %s", field, reason)).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsSimError unwraps err into a *SimError if possible.
func AsSimError(err error) (*SimError, bool) {
	var se *SimError
	ok := errors.As(err, &se)
	return se, ok
}
