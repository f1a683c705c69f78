package recordmanualaccrual

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/validation"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/models"
)

func TestHandler_Execute_SurvivesRegeneration(t *testing.T) {
	log := logger.NewTestLogger(t)
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	svc := ledger.NewService(store.NewMemoryStore(), log, ledger.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, ledger.CreateLoanCommand{
		CreditorName:     "Ada",
		Principal:        decimal.NewFromInt(1000),
		InterestRate:     decimal.NewFromInt(12),
		InterestType:     models.InterestTypeSimple,
		AccrualFrequency: models.AccrualFrequencyMonthly,
		LoanDate:         civil.Date{Year: 2024, Month: time.January, Day: 1},
	})
	require.NoError(t, err)

	h := NewHandler(LoadConfig(), svc, log)

	var input Input
	require.NoError(t, validation.Decode(
		`{"loanId":"`+loan.ID+`","amount":"7.5","accrualDate":"2024-02-15"}`,
		InputSchema, &input))

	out, err := h.Execute(ctx, &input)
	require.NoError(t, err)
	assert.Equal(t, "7.50", out.Amount)
	assert.NotEmpty(t, out.AccrualID)

	_, err = svc.EditLoanTerms(ctx, ledger.EditLoanTermsCommand{
		LoanID:           loan.ID,
		InterestRate:     decimal.NewFromInt(24),
		InterestType:     models.InterestTypeSimple,
		AccrualFrequency: models.AccrualFrequencyMonthly,
	})
	require.NoError(t, err)

	summary, err := svc.LoanSummary(ctx, loan.ID)
	require.NoError(t, err)

	var manual []models.InterestAccrual
	for _, a := range summary.Accruals {
		if a.IsManual {
			manual = append(manual, a)
		}
	}
	require.Len(t, manual, 1)
	assert.Equal(t, out.AccrualID, manual[0].ID)
	assert.Equal(t, models.InterestTypeSimple, manual[0].InterestType)
	assert.Equal(t, "67.50", summary.TotalInterest.StringFixed(2))
}

func TestInputSchema_ZeroAmount(t *testing.T) {
	var input Input
	err := validation.Decode(`{"loanId":"l1","amount":"0","accrualDate":"2024-02-15"}`, InputSchema, &input)

	// "0" passes the string pattern; the ledger rejects it
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	h := NewHandler(LoadConfig(), ledger.NewService(store.NewMemoryStore(), log), log)
	_, err = h.Execute(context.Background(), &input)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
