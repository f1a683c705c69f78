// Package store persists the loan ledger. Both implementations honour the same
// contract: lookups of missing rows return an error wrapping models.ErrNotFound,
// and InTx runs a set of mutations atomically.
package store

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

// ErrNotFound is returned (wrapped) for missing rows.
var ErrNotFound = models.ErrNotFound

type Store interface {
	CreateCreditor(ctx context.Context, c *models.Creditor) error
	GetCreditor(ctx context.Context, id string) (*models.Creditor, error)
	GetCreditorByToken(ctx context.Context, token string) (*models.Creditor, error)
	UpdateCreditorToken(ctx context.Context, creditorID, token string) error

	CreateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id string) (*models.Loan, error)
	UpdateLoan(ctx context.Context, l *models.Loan) error
	// DeleteLoan removes the loan with its accruals, payments and disbursements.
	DeleteLoan(ctx context.Context, id string) error
	// ListActiveInterestLoans returns active loans with a positive rate.
	ListActiveInterestLoans(ctx context.Context) ([]models.Loan, error)
	// ListLoansByCreditor is ordered by loan date, newest first.
	ListLoansByCreditor(ctx context.Context, creditorID string) ([]models.Loan, error)

	AddDisbursement(ctx context.Context, d *models.Disbursement) error
	// ListDisbursements is ordered by disbursement date, oldest first.
	ListDisbursements(ctx context.Context, loanID string) ([]models.Disbursement, error)

	AddPayment(ctx context.Context, p *models.Payment) error
	DeletePayment(ctx context.Context, loanID, paymentID string) error
	ListPayments(ctx context.Context, loanID string) ([]models.Payment, error)

	// AddAccruals inserts rows in batches no larger than the store's batch size.
	AddAccruals(ctx context.Context, accruals []models.InterestAccrual) error
	// DeleteAutomaticAccruals removes engine-owned rows and leaves manual ones.
	DeleteAutomaticAccruals(ctx context.Context, loanID string) (int64, error)
	ListAccruals(ctx context.Context, loanID string) ([]models.InterestAccrual, error)
	// LastAccrualDate is the latest accrual of any provenance, or nil.
	LastAccrualDate(ctx context.Context, loanID string) (*civil.Date, error)
	// LoanTotals sums accrued interest and payments for a loan.
	LoanTotals(ctx context.Context, loanID string) (interest, paid decimal.Decimal, err error)

	// InTx runs fn against a transactional view of the store. fn's error
	// rolls back every mutation it made.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
