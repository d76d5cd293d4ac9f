// Package errors defines the coded error taxonomy used across the governance
// engine. Every user-visible failure carries a code so callers can tell
// validation problems apart from retryable ledger failures.
package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates input validation errors
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeState indicates a transition attempted from the wrong proposal state
	ErrCodeState ErrorCode = "STATE"

	// ErrCodeNotFound indicates a missing proposal or vote record
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeLedgerSubmit indicates a ledger submission that failed before confirmation
	ErrCodeLedgerSubmit ErrorCode = "LEDGER_SUBMIT"

	// ErrCodeLedgerRevert indicates a submission that was mined but reverted on-chain
	ErrCodeLedgerRevert ErrorCode = "LEDGER_REVERT"

	// ErrCodeConsistency indicates local state disagreeing with what was submitted at creation
	ErrCodeConsistency ErrorCode = "CONSISTENCY"

	// ErrCodeTimeout indicates a confirmation wait that exceeded its deadline
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeContentStore indicates the content-addressed storage collaborator failed
	ErrCodeContentStore ErrorCode = "CONTENT_STORE"

	// ErrCodeDatabase indicates store operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	// SeverityCritical indicates critical errors that require immediate attention
	SeverityCritical Severity = "CRITICAL"

	// SeverityHigh indicates high priority errors
	SeverityHigh Severity = "HIGH"

	// SeverityMedium indicates medium priority errors
	SeverityMedium Severity = "MEDIUM"

	// SeverityLow indicates low priority errors
	SeverityLow Severity = "LOW"

	// SeverityInfo indicates informational errors
	SeverityInfo Severity = "INFO"
)

// EngineError represents an error raised by the governance engine
type EngineError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Op       string                 `json:"op,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// New creates a new EngineError
func New(code ErrorCode, op, message string, cause error) *EngineError {
	return &EngineError{
		Code:     code,
		Message:  message,
		Op:       op,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Op, e.Code, e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message)
}

// Unwrap returns the underlying cause
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *EngineError) WithSeverity(severity Severity) *EngineError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable by deliberate caller
// action. Validation and consistency errors are never retryable; an
// indeterminate timeout requires a ledger read before resubmission, so it is
// not reported as retryable either.
func (e *EngineError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeLedgerSubmit, ErrCodeContentStore:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

// determineSeverity determines the default severity based on error code
func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase, ErrCodeConsistency:
		return SeverityHigh
	case ErrCodeLedgerSubmit, ErrCodeLedgerRevert, ErrCodeTimeout:
		return SeverityMedium
	case ErrCodeValidation, ErrCodeState, ErrCodeNotFound:
		return SeverityLow
	default:
		return SeverityInfo
	}
}
