package models

import "fmt"

// Stable reason codes carried by pipeline errors. Callers branch on the
// code via errors.Is against the sentinel values below.
const (
	CodeInsufficientData     = "INSUFFICIENT_DATA"
	CodeDegenerateRegression = "DEGENERATE_REGRESSION"
	CodeNotIndexed           = "NOT_INDEXED"
	CodeDataUnavailable      = "DATA_UNAVAILABLE"
)

// ReasonError is a pipeline failure with a stable reason code. Retryable
// marks transient failures (upstream data source down) as opposed to
// facts about the data itself.
type ReasonError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches by reason code so wrapped instances compare equal to the
// package sentinels.
func (e *ReasonError) Is(target error) bool {
	t, ok := target.(*ReasonError)
	return ok && t.Code == e.Code
}

var (
	ErrInsufficientData     = &ReasonError{Code: CodeInsufficientData, Message: "not enough aligned observations"}
	ErrDegenerateRegression = &ReasonError{Code: CodeDegenerateRegression, Message: "regression inputs are degenerate"}
	ErrNotIndexed           = &ReasonError{Code: CodeNotIndexed, Message: "instrument has no stored embedding"}
	ErrDataUnavailable      = &ReasonError{Code: CodeDataUnavailable, Message: "price history unavailable", Retryable: true}
)

// Reason builds a new error carrying the same code as base with a
// situation-specific message.
func Reason(base *ReasonError, format string, args ...interface{}) *ReasonError {
	return &ReasonError{
		Code:      base.Code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: base.Retryable,
	}
}
