package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/common/logger"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/ledger/store"
	"loan-ledger/internal/models"
	"loan-ledger/internal/quotes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==========================
// Test helpers
// ==========================

type mockQuotes struct {
	mock.Mock
}

func (m *mockQuotes) Price(ctx context.Context, slug string) (*quotes.Quote, error) {
	args := m.Called(ctx, slug)
	q, _ := args.Get(0).(*quotes.Quote)
	return q, args.Error(1)
}

type mockLedger struct {
	mock.Mock
	LedgerService
}

func (m *mockLedger) RunDailySweep(ctx context.Context) (*ledger.SweepResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*ledger.SweepResult)
	return r, args.Error(1)
}

var testNow = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *ledger.Service {
	return ledger.NewService(store.NewMemoryStore(), logger.NewTestLogger(t),
		ledger.WithClock(func() time.Time { return testNow }))
}

func newRouter(t *testing.T, deps Deps) *gin.Engine {
	if deps.CronSecret == "" {
		deps.CronSecret = "s3cret"
	}
	if deps.Quotes == nil {
		deps.Quotes = new(mockQuotes)
	}
	return NewServer(deps, logger.NewTestLogger(t)).Router()
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func createLoan(t *testing.T, svc *ledger.Service, principal int64, rate int64) *models.Loan {
	t.Helper()
	loan, err := svc.CreateLoan(context.Background(), ledger.CreateLoanCommand{
		CreditorName:     "Ada",
		Principal:        decimal.NewFromInt(principal),
		InterestRate:     decimal.NewFromInt(rate),
		InterestType:     models.InterestTypeSimple,
		AccrualFrequency: models.AccrualFrequencyMonthly,
		LoanDate:         civil.Date{Year: 2024, Month: time.January, Day: 1},
	})
	require.NoError(t, err)
	return loan
}

// ==========================
// Cron
// ==========================

func TestCronInterest_Unauthorized(t *testing.T) {
	r := newRouter(t, Deps{Ledger: newLedger(t)})

	for name, header := range map[string]map[string]string{
		"no header":    nil,
		"wrong secret": {"Authorization": "Bearer nope"},
		"not bearer":   {"Authorization": "s3cret"},
	} {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/cron/interest", header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCronInterest_EmptySecretRejectsAll(t *testing.T) {
	r := NewServer(Deps{Ledger: newLedger(t)}, logger.NewTestLogger(t)).Router()

	w := do(r, http.MethodGet, "/api/cron/interest", map[string]string{"Authorization": "Bearer "})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronInterest_Accrues(t *testing.T) {
	svc := ledger.NewService(store.NewMemoryStore(), logger.NewTestLogger(t),
		ledger.WithClock(func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) }))

	// opened today, so nothing is generated and the sweep writes the first row
	_, err := svc.CreateLoan(context.Background(), ledger.CreateLoanCommand{
		CreditorName:     "Ada",
		Principal:        decimal.NewFromInt(1000),
		InterestRate:     decimal.NewFromInt(12),
		InterestType:     models.InterestTypeSimple,
		AccrualFrequency: models.AccrualFrequencyDaily,
		LoanDate:         civil.Date{Year: 2024, Month: time.May, Day: 1},
	})
	require.NoError(t, err)

	r := newRouter(t, Deps{Ledger: svc})
	auth := map[string]string{"Authorization": "Bearer s3cret"}

	w := do(r, http.MethodGet, "/api/cron/interest", auth)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Interest accrued for 1 loan(s)", body["message"])
	assert.Equal(t, "2024-05-01", body["date"])
	assert.Equal(t, float64(1), body["accrued"])

	w = do(r, http.MethodPost, "/api/cron/interest", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Interest accrued for 0 loan(s)", decodeBody(t, w)["message"])
}

func TestCronInterest_NoLoans(t *testing.T) {
	r := newRouter(t, Deps{Ledger: newLedger(t)})

	w := do(r, http.MethodPost, "/api/cron/interest", map[string]string{"Authorization": "Bearer s3cret"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No active loans with interest", decodeBody(t, w)["message"])
}

func TestCronInterest_ListFailure(t *testing.T) {
	svc := new(mockLedger)
	svc.On("RunDailySweep", mock.Anything).Return(nil, errors.New("connection refused"))
	r := newRouter(t, Deps{Ledger: svc})

	w := do(r, http.MethodPost, "/api/cron/interest", map[string]string{"Authorization": "Bearer s3cret"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "connection refused", decodeBody(t, w)["error"])
}

func TestCronInterest_PartialFailure(t *testing.T) {
	svc := new(mockLedger)
	svc.On("RunDailySweep", mock.Anything).Return(&ledger.SweepResult{
		Date:         civil.Date{Year: 2024, Month: time.March, Day: 1},
		LoansAccrued: 2,
		LoansFailed:  1,
	}, errors.New("loan l3: deadlock"))
	r := newRouter(t, Deps{Ledger: svc})

	w := do(r, http.MethodPost, "/api/cron/interest", map[string]string{"Authorization": "Bearer s3cret"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["accrued"])
	assert.Equal(t, float64(1), body["failed"])
}

// ==========================
// Loans & portal
// ==========================

func TestGetLoan(t *testing.T) {
	svc := newLedger(t)
	loan := createLoan(t, svc, 1000, 12)
	r := newRouter(t, Deps{Ledger: svc})

	w := do(r, http.MethodGet, "/api/loans/"+loan.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.LoanSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, loan.ID, summary.Loan.ID)
	assert.True(t, summary.TotalInterest.Equal(decimal.NewFromInt(30)))
	assert.Len(t, summary.Accruals, 3)

	w = do(r, http.MethodGet, "/api/loans/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LOAN_NOT_FOUND", decodeBody(t, w)["code"])
}

func TestDeletePayment(t *testing.T) {
	svc := newLedger(t)
	loan := createLoan(t, svc, 1000, 0)
	payment, err := svc.RecordPayment(context.Background(), ledger.RecordPaymentCommand{
		LoanID:      loan.ID,
		Amount:      decimal.NewFromInt(100),
		PaymentDate: civil.Date{Year: 2024, Month: time.February, Day: 1},
	})
	require.NoError(t, err)
	r := newRouter(t, Deps{Ledger: svc})

	path := "/api/loans/" + loan.ID + "/payments/" + payment.ID
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, path, nil).Code)
}

func TestGetPortal(t *testing.T) {
	st := store.NewMemoryStore()
	svc := ledger.NewService(st, logger.NewTestLogger(t),
		ledger.WithClock(func() time.Time { return testNow }))
	ctx := context.Background()

	loan := createLoan(t, svc, 1000, 0)
	_, err := svc.RecordPayment(ctx, ledger.RecordPaymentCommand{
		LoanID:      loan.ID,
		Amount:      decimal.NewFromInt(1200),
		PaymentDate: civil.Date{Year: 2024, Month: time.February, Day: 1},
	})
	require.NoError(t, err)

	creditor, err := st.GetCreditor(ctx, loan.CreditorID)
	require.NoError(t, err)
	r := newRouter(t, Deps{Ledger: svc})

	w := do(r, http.MethodGet, "/api/portal/"+creditor.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), creditor.AccessToken)

	var got ledger.PortalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Loans, 1)
	assert.Equal(t, creditor.ID, got.Creditor.ID)
	assert.True(t, got.Loans[0].OutstandingBalance.Equal(decimal.NewFromInt(-200)))
	require.Len(t, got.Loans[0].Payments, 1)
	assert.True(t, got.Loans[0].Payments[0].Amount.Equal(decimal.NewFromInt(1200)))
	assert.True(t, got.TotalBalance.IsZero(), "balance floors at zero")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/portal/unknown", nil).Code)
}

// ==========================
// Token price
// ==========================

func TestTokenPrice(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		quote  *quotes.Quote
		err    error
		status int
	}{
		{name: "ok", query: "?slug=bitcoin", quote: &quotes.Quote{Price: 64000.5, PercentChange24h: -1.2}, status: http.StatusOK},
		{name: "missing slug", err: quotes.ErrMissingSlug, status: http.StatusBadRequest},
		{name: "no api key", query: "?slug=bitcoin", err: quotes.ErrNotConfigured, status: http.StatusInternalServerError},
		{name: "upstream", query: "?slug=bitcoin", err: quotes.ErrUpstream, status: http.StatusBadGateway},
		{name: "unknown token", query: "?slug=nope", err: quotes.ErrTokenNotFound, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mockQuotes)
			q.On("Price", mock.Anything, mock.Anything).Return(tt.quote, tt.err)
			r := newRouter(t, Deps{Ledger: newLedger(t), Quotes: q})

			w := do(r, http.MethodGet, "/api/token-price"+tt.query, nil)

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			if tt.status == http.StatusOK {
				assert.Equal(t, 64000.5, body["price"])
				return
			}
			assert.NotEmpty(t, body["error"])
		})
	}
}

// ==========================
// Operational
// ==========================

func TestHealthAndReady(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	r := newRouter(t, Deps{
		Ledger: newLedger(t),
		Checks: map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return down },
		},
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil).Code)

	w := do(r, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "not ready", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, down.Error(), checks["redis"])

	ok := newRouter(t, Deps{Ledger: newLedger(t)})
	assert.Equal(t, http.StatusOK, do(ok, http.MethodGet, "/ready", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t, Deps{Ledger: newLedger(t)})

	w := do(r, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
