package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-ledger/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func mustDate(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func accrualRows(loanID string, n int) []models.InterestAccrual {
	out := make([]models.InterestAccrual, n)
	start := mustDate("2024-01-01")
	for i := range out {
		out[i] = models.InterestAccrual{
			ID:           "acc-" + string(rune('a'+i)),
			LoanID:       loanID,
			Amount:       decimal.RequireFromString("10.00"),
			AccrualDate:  start.AddDays(i),
			InterestType: models.InterestTypeSimple,
		}
	}
	return out
}

var loanColumns = []string{
	"id", "creditor_id", "principal", "interest_rate", "interest_type", "accrual_frequency",
	"loan_date", "due_date", "status", "notes", "created_at", "updated_at",
}

// ==========================
// Accruals
// ==========================

func TestPostgresStore_AddAccruals_SplitsBatches(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 2)

	mock.ExpectExec(`INSERT INTO interest_accruals`).
		WithArgs(anyArgs(2 * accrualColumns)...).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO interest_accruals`).
		WithArgs(anyArgs(accrualColumns)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.AddAccruals(context.Background(), accrualRows("loan-1", 3))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddAccruals_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	assert.NoError(t, s.AddAccruals(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddAccruals_RowValues(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	rows := accrualRows("loan-1", 1)
	rows[0].IsManual = true

	mock.ExpectExec(`INSERT INTO interest_accruals \(id, loan_id, amount, accrual_date, interest_type, is_manual, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)`).
		WithArgs("acc-a", "loan-1", decimal.RequireFromString("10"), "2024-01-01", "simple", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.AddAccruals(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_RollsBackRegeneration(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM interest_accruals WHERE loan_id = \$1 AND is_manual = false`).
		WithArgs("loan-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO interest_accruals`).
		WithArgs(anyArgs(2 * accrualColumns)...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx Store) error {
		if _, err := tx.DeleteAutomaticAccruals(context.Background(), "loan-1"); err != nil {
			return err
		}
		return tx.AddAccruals(context.Background(), accrualRows("loan-1", 2))
	})

	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_NestedJoinsOuter(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM payments WHERE id = \$1 AND loan_id = \$2`).
		WithArgs("pay-1", "loan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx Store) error {
		return tx.InTx(context.Background(), func(inner Store) error {
			return inner.DeletePayment(context.Background(), "loan-1", "pay-1")
		})
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastAccrualDate(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectQuery(`SELECT MAX\(accrual_date\) FROM interest_accruals WHERE loan_id = \$1`).
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(`SELECT MAX\(accrual_date\) FROM interest_accruals WHERE loan_id = \$1`).
		WithArgs("loan-2").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	last, err := s.LastAccrualDate(context.Background(), "loan-1")
	assert.NoError(t, err)
	assert.Nil(t, last)

	last, err = s.LastAccrualDate(context.Background(), "loan-2")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "2024-03-01", last.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoanTotals(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectQuery(`SELECT\s+COALESCE`).
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"interest", "paid"}).AddRow("120.50", "100.00"))

	interest, paid, err := s.LoanTotals(context.Background(), "loan-1")

	require.NoError(t, err)
	assert.Equal(t, "120.50", interest.StringFixed(2))
	assert.Equal(t, "100.00", paid.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Loans
// ==========================

func TestPostgresStore_GetLoan(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, creditor_id, principal`).
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows(loanColumns).AddRow(
			"loan-1", "cred-1", "1000.00", "12.00", "compound", "monthly",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, "active", "", created, created,
		))

	loan, err := s.GetLoan(context.Background(), "loan-1")

	require.NoError(t, err)
	assert.Equal(t, "cred-1", loan.CreditorID)
	assert.Equal(t, "1000.00", loan.Principal.StringFixed(2))
	assert.Equal(t, models.InterestTypeCompound, loan.InterestType)
	assert.Equal(t, models.AccrualFrequencyMonthly, loan.AccrualFrequency)
	assert.Equal(t, "2024-01-01", loan.LoanDate.String())
	assert.Nil(t, loan.DueDate)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLoan_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectQuery(`SELECT id, creditor_id, principal`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetLoan(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrLoanNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLoan_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectExec(`UPDATE loans SET`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateLoan(context.Background(), &models.Loan{ID: "missing", LoanDate: mustDate("2024-01-01")})

	assert.ErrorIs(t, err, models.ErrLoanNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteLoan_Cascades(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectExec(`DELETE FROM interest_accruals WHERE loan_id = \$1`).WithArgs("loan-1").WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(`DELETE FROM payments WHERE loan_id = \$1`).WithArgs("loan-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM disbursements WHERE loan_id = \$1`).WithArgs("loan-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM loans WHERE id = \$1`).WithArgs("loan-1").WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.DeleteLoan(context.Background(), "loan-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeletePayment_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectExec(`DELETE FROM payments WHERE id = \$1 AND loan_id = \$2`).
		WithArgs("pay-9", "loan-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeletePayment(context.Background(), "loan-1", "pay-9")

	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDisbursements(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM disbursements WHERE loan_id = \$1 ORDER BY disbursement_date`).
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "loan_id", "amount", "disbursement_date", "notes", "created_at"}).
			AddRow("d-1", "loan-1", "1000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Initial disbursement", created).
			AddRow("d-2", "loan-1", "500", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), "", created))

	out, err := s.ListDisbursements(context.Background(), "loan-1")

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2024-02-15", out[1].DisbursementDate.String())
	assert.Equal(t, "Initial disbursement", out[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCreditorToken(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectExec(`UPDATE creditors SET access_token = \$2 WHERE id = \$1`).
		WithArgs("cred-1", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE creditors SET access_token`).
		WithArgs("cred-2", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpdateCreditorToken(context.Background(), "cred-1", "new-token"))
	assert.ErrorIs(t, s.UpdateCreditorToken(context.Background(), "cred-2", "new-token"), models.ErrCreditorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLoansByCreditor_NewestFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE creditor_id = \$1 ORDER BY loan_date DESC, created_at`).
		WithArgs("cred-1").
		WillReturnRows(sqlmock.NewRows(loanColumns).
			AddRow("loan-2", "cred-1", "500", "0", "simple", "daily",
				time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil, "active", "", created, created).
			AddRow("loan-1", "cred-1", "1000", "12", "simple", "monthly",
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, "active", "", created, created))

	loans, err := s.ListLoansByCreditor(context.Background(), "cred-1")

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, "loan-2", loans[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCreditorByToken_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewPostgresStore(db, 500)

	mock.ExpectQuery(`FROM creditors WHERE access_token = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetCreditorByToken(context.Background(), "nope")

	assert.ErrorIs(t, err, models.ErrCreditorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
