package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/models"
)

func TestFromLedgerError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      ErrorCode
		retryable bool
	}{
		{"validation", fmt.Errorf("principal: %w", models.ErrInvalidInput), ErrCodeInvalidLoanRequest, false},
		{"loan missing", fmt.Errorf("get loan l-1: %w", models.ErrLoanNotFound), ErrCodeLoanNotFound, false},
		{"creditor missing", models.ErrCreditorNotFound, ErrCodeCreditorNotFound, false},
		{"payment missing", models.ErrPaymentNotFound, ErrCodeResourceNotFound, false},
		{"deadline", fmt.Errorf("insert: %w", context.DeadlineExceeded), ErrCodeTimeout, true},
		{"bad connection", fmt.Errorf("insert accruals: %w", driver.ErrBadConn), ErrCodeDatabaseConnectionFailed, true},
		{"pool closed", sql.ErrConnDone, ErrCodeDatabaseConnectionFailed, true},
		{"storage", stderrors.New("connection reset by peer"), ErrCodeDatabaseWriteFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromLedgerError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.retryable, got.Retryable)
		})
	}
}

func TestFromLedgerError_KeepsLoanDetails(t *testing.T) {
	got := FromLedgerError(fmt.Errorf("get loan l-1: %w", models.ErrLoanNotFound))
	assert.Equal(t, "Loan not found", got.Message)
	assert.Equal(t, "get loan l-1: loan not found", got.Details)
}

func TestFromLedgerError_PassThrough(t *testing.T) {
	original := NewQuoteFetchFailedError("bitcoin", stderrors.New("502"))
	wrapped := fmt.Errorf("handler: %w", original)

	assert.Same(t, original, FromLedgerError(wrapped))
	assert.Nil(t, FromLedgerError(nil))
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewAccrualRegenerationFailedError("loan-1", stderrors.New("batch insert failed")).
		WithMetadata("loanId", "loan-1")

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "ACCRUAL_REGENERATION_FAILED", bpmnErr.Code)
	assert.Equal(t, 3, bpmnErr.Retries)
	assert.True(t, bpmnErr.Retryable)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "ACCRUAL_REGENERATION_FAILED", vars["errorCode"])
	assert.Equal(t, "ACCRUAL_REGENERATION_FAILED", vars["originalErrorCode"])
	assert.Equal(t, "loan-1", vars["loanId"])
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	stdErr := &StandardError{Code: ErrCodeDatabaseWriteFailed, Message: "forced", Retryable: false}
	assert.Equal(t, 0, ConvertToBPMNError(stdErr).Retries)
}

func TestRemainingRetries(t *testing.T) {
	retryable := NewDatabaseWriteFailedError(stderrors.New("x"))
	business := NewInvalidLoanRequestError("bad rate")

	assert.Equal(t, 3, RemainingRetries(retryable, 10))
	assert.Equal(t, 2, RemainingRetries(retryable, 3))
	assert.Equal(t, 0, RemainingRetries(retryable, 1))
	assert.Equal(t, 0, RemainingRetries(business, 5))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseWriteFailed))
	assert.Equal(t, "INTEREST", GetErrorCategory(ErrCodeInterestSweepFailed))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeLoanNotFound))
	assert.Equal(t, "EXTERNAL", GetErrorCategory(ErrCodeQuoteFetchFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidLoanRequest))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeLoanNotFound))
}
