// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"loan-ledger/internal/models"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidLoanRequest ErrorCode = "INVALID_LOAN_REQUEST"
	ErrCodeLoanNotFound       ErrorCode = "LOAN_NOT_FOUND"
	ErrCodeCreditorNotFound   ErrorCode = "CREDITOR_NOT_FOUND"
	ErrCodeResourceNotFound   ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed  ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseWriteFailed       ErrorCode = "DATABASE_WRITE_FAILED"
	ErrCodeAccrualRegenerationFailed ErrorCode = "ACCRUAL_REGENERATION_FAILED"
	ErrCodeInterestSweepFailed       ErrorCode = "INTEREST_SWEEP_FAILED"
	ErrCodeQuoteFetchFailed          ErrorCode = "QUOTE_FETCH_FAILED"
	ErrCodeTimeout                   ErrorCode = "TIMEOUT_ERROR"
	ErrCodeExternalService           ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal                  ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidLoanRequestError creates a non-retryable validation error.
func NewInvalidLoanRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidLoanRequest,
		Message:   "Invalid loan request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLoanNotFoundError creates a non-retryable lookup error.
func NewLoanNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoanNotFound,
		Message:   "Loan not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCreditorNotFoundError creates a non-retryable lookup error.
func NewCreditorNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCreditorNotFound,
		Message:   "Creditor not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseWriteFailedError creates a retryable ledger write error.
func NewDatabaseWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseWriteFailed,
		Message:   "Ledger write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAccrualRegenerationFailedError creates a retryable error for a rolled back
// accrual rebuild.
func NewAccrualRegenerationFailedError(loanID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAccrualRegenerationFailed,
		Message:   "Accrual regeneration failed",
		Details:   fmt.Sprintf("loanId: %s, error: %s", loanID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInterestSweepFailedError creates a retryable sweep error.
func NewInterestSweepFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInterestSweepFailed,
		Message:   "Daily interest sweep failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuoteFetchFailedError creates a retryable upstream price error.
func NewQuoteFetchFailedError(slug string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteFetchFailed,
		Message:   "Failed to fetch token price",
		Details:   fmt.Sprintf("slug: %s, error: %s", slug, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// FromLedgerError classifies an error returned by the ledger service.
func FromLedgerError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	switch {
	case stderrors.Is(err, models.ErrInvalidInput):
		return NewInvalidLoanRequestError(err.Error())
	case stderrors.Is(err, models.ErrLoanNotFound):
		return NewLoanNotFoundError(err.Error())
	case stderrors.Is(err, models.ErrCreditorNotFound):
		return NewCreditorNotFoundError(err.Error())
	case stderrors.Is(err, models.ErrNotFound):
		return NewResourceNotFoundError("ledger", err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("ledger", err)
	case stderrors.Is(err, driver.ErrBadConn), stderrors.Is(err, sql.ErrConnDone):
		return NewDatabaseConnectionFailedError(err)
	default:
		return NewDatabaseWriteFailedError(err)
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by
// boundary events in the loan processes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidLoanRequest:        "INVALID_LOAN_REQUEST",
	ErrCodeLoanNotFound:              "LOAN_NOT_FOUND",
	ErrCodeCreditorNotFound:          "CREDITOR_NOT_FOUND",
	ErrCodeResourceNotFound:          "RESOURCE_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:  "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseWriteFailed:       "DATABASE_WRITE_FAILED",
	ErrCodeAccrualRegenerationFailed: "ACCRUAL_REGENERATION_FAILED",
	ErrCodeInterestSweepFailed:       "INTEREST_SWEEP_FAILED",
	ErrCodeQuoteFetchFailed:          "QUOTE_FETCH_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseWriteFailed,
		ErrCodeAccrualRegenerationFailed,
		ErrCodeInterestSweepFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodeQuoteFetchFailed:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ACCRUAL") || strings.Contains(codeStr, "SWEEP"):
		return "INTEREST"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "QUOTE") || strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "BUSINESS_RULE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
