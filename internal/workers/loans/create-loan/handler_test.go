package createloan

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/common/validation"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/models"
)

// ==========================
// Test helpers
// ==========================

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("[DEBUG] %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("[INFO] %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("[WARN] %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("[ERROR] %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateLoan(ctx context.Context, cmd ledger.CreateLoanCommand) (*models.Loan, error) {
	args := m.Called(ctx, cmd)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func newLedger(t *testing.T) *ledger.Service {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return ledger.NewService(store.NewMemoryStore(), &testLogger{t},
		ledger.WithClock(func() time.Time { return now }))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(LoadConfig(), newLedger(t), &testLogger{t})

	var input Input
	require.NoError(t, validation.Decode(`{
		"creditorName": "Ada",
		"principal": "1000",
		"interestRate": 12,
		"interestType": "simple",
		"accrualFrequency": "monthly",
		"loanDate": "2024-01-01",
		"dueDate": null,
		"processVariable": "ignored"
	}`, InputSchema, &input))

	out, err := h.Execute(context.Background(), &input)

	require.NoError(t, err)
	assert.NotEmpty(t, out.LoanID)
	assert.NotEmpty(t, out.CreditorID)
	assert.Equal(t, "1000.00", out.Principal)
	assert.Equal(t, "2024-01-01", out.LoanDate)
	assert.Equal(t, "active", out.Status)
}

func TestHandler_Execute_ServiceError(t *testing.T) {
	svc := new(mockService)
	svc.On("CreateLoan", mock.Anything, mock.MatchedBy(func(cmd ledger.CreateLoanCommand) bool {
		return cmd.CreditorID == "cred-1" && cmd.Principal.Equal(decimal.NewFromInt(500))
	})).Return(nil, models.ErrCreditorNotFound)

	h := NewHandler(LoadConfig(), svc, &testLogger{t})
	_, err := h.Execute(context.Background(), &Input{
		CreditorID:       "cred-1",
		Principal:        decimal.NewFromInt(500),
		InterestType:     models.InterestTypeSimple,
		AccrualFrequency: models.AccrualFrequencyDaily,
		LoanDate:         civil.Date{Year: 2024, Month: time.March, Day: 1},
	})

	assert.ErrorIs(t, err, models.ErrCreditorNotFound)
	svc.AssertExpectations(t)
}

// ==========================
// Input schema
// ==========================

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name  string
		vars  string
		valid bool
	}{
		{
			name:  "existing creditor",
			vars:  `{"creditorId":"c1","principal":100,"interestRate":"0","interestType":"compound","accrualFrequency":"daily","loanDate":"2024-01-01"}`,
			valid: true,
		},
		{
			name: "no creditor",
			vars: `{"principal":100,"interestRate":5,"interestType":"simple","accrualFrequency":"daily","loanDate":"2024-01-01"}`,
		},
		{
			name: "unknown interest type",
			vars: `{"creditorName":"A","principal":100,"interestRate":5,"interestType":"tiered","accrualFrequency":"daily","loanDate":"2024-01-01"}`,
		},
		{
			name: "negative rate",
			vars: `{"creditorName":"A","principal":100,"interestRate":-5,"interestType":"simple","accrualFrequency":"daily","loanDate":"2024-01-01"}`,
		},
		{
			name: "missing loan date",
			vars: `{"creditorName":"A","principal":100,"interestRate":5,"interestType":"simple","accrualFrequency":"daily"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input Input
			err := validation.Decode(tt.vars, InputSchema, &input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}
