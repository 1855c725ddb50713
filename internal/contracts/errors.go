package contracts

import (
	"errors"
	"fmt"
)

// ⭐ SSOT: 도메인 sentinel 에러는 여기서만 정의
var (
	// Stage precondition errors (hard failures)
	ErrBenchmarkUnavailable = errors.New("no recent benchmark performance available")
	ErrNoCandidates         = errors.New("no candidates for date")
	ErrAsOfDateRequired     = errors.New("as-of date is required")

	// Per-symbol data errors
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrDataUnavailable     = errors.New("data unavailable")

	// Flow bookkeeping errors
	ErrFlowNotFound      = errors.New("flow not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSymbolNotFound    = errors.New("scored symbol not found")
)

// MaxReportedErrors caps embedded per-symbol error lists in payloads
const MaxReportedErrors = 10

// SymbolError is an isolated per-symbol failure
type SymbolError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"error"`
}

func (e SymbolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Symbol, e.Message)
}

// ErrorSummary collects per-symbol errors for a stage report
type ErrorSummary struct {
	ErrorCount int           `json:"error_count"`
	Errors     []SymbolError `json:"errors"`
}

// Record appends a per-symbol failure
func (s *ErrorSummary) Record(symbol string, err error) {
	s.ErrorCount++
	s.Errors = append(s.Errors, SymbolError{Symbol: symbol, Message: err.Error()})
}

// Capped returns a copy holding at most max errors; ErrorCount keeps the full total
func (s ErrorSummary) Capped(max int) ErrorSummary {
	n := len(s.Errors)
	if n > max {
		n = max
	}
	out := ErrorSummary{ErrorCount: s.ErrorCount, Errors: make([]SymbolError, n)}
	copy(out.Errors, s.Errors[:n])
	return out
}
