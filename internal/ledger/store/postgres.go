package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/common/database"
	"loan-ledger/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const accrualColumns = 7

type PostgresStore struct {
	db        *sql.DB
	q         querier
	batchSize int
}

func NewPostgresStore(db *sql.DB, batchSize int) *PostgresStore {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PostgresStore{db: db, q: db, batchSize: batchSize}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	// already inside a transaction: join it
	if s.db == nil {
		return fn(s)
	}
	return database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&PostgresStore{q: tx, batchSize: s.batchSize})
	})
}

// ==========================
// Creditors
// ==========================

func (s *PostgresStore) CreateCreditor(ctx context.Context, c *models.Creditor) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO creditors (id, name, email, access_token, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, nullString(c.Email), c.AccessToken, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert creditor: %w", err)
	}
	return nil
}

const selectCreditor = `SELECT id, name, COALESCE(email, ''), access_token, created_at FROM creditors`

func (s *PostgresStore) GetCreditor(ctx context.Context, id string) (*models.Creditor, error) {
	return s.getCreditor(ctx, selectCreditor+` WHERE id = $1`, id)
}

func (s *PostgresStore) GetCreditorByToken(ctx context.Context, token string) (*models.Creditor, error) {
	return s.getCreditor(ctx, selectCreditor+` WHERE access_token = $1`, token)
}

func (s *PostgresStore) UpdateCreditorToken(ctx context.Context, creditorID, token string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE creditors SET access_token = $2 WHERE id = $1`, creditorID, token)
	if err != nil {
		return fmt.Errorf("update creditor token: %w", err)
	}
	return requireRow(res, models.ErrCreditorNotFound)
}

func (s *PostgresStore) getCreditor(ctx context.Context, query string, arg string) (*models.Creditor, error) {
	var c models.Creditor
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Email, &c.AccessToken, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCreditorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select creditor: %w", err)
	}
	return &c, nil
}

// ==========================
// Loans
// ==========================

const selectLoan = `SELECT id, creditor_id, principal, interest_rate, interest_type, accrual_frequency,
	loan_date, due_date, status, COALESCE(notes, ''), created_at, updated_at FROM loans`

func (s *PostgresStore) CreateLoan(ctx context.Context, l *models.Loan) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO loans (id, creditor_id, principal, interest_rate, interest_type, accrual_frequency,
			loan_date, due_date, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.CreditorID, l.Principal, l.InterestRate, string(l.InterestType), string(l.AccrualFrequency),
		l.LoanDate.String(), nullDate(l.DueDate), string(l.Status), nullString(l.Notes), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	row := s.q.QueryRowContext(ctx, selectLoan+` WHERE id = $1`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select loan: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) UpdateLoan(ctx context.Context, l *models.Loan) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE loans SET principal = $1, interest_rate = $2, interest_type = $3, accrual_frequency = $4,
			loan_date = $5, due_date = $6, status = $7, notes = $8, updated_at = $9
		WHERE id = $10`,
		l.Principal, l.InterestRate, string(l.InterestType), string(l.AccrualFrequency),
		l.LoanDate.String(), nullDate(l.DueDate), string(l.Status), nullString(l.Notes), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return requireRow(res, models.ErrLoanNotFound)
}

func (s *PostgresStore) DeleteLoan(ctx context.Context, id string) error {
	for _, table := range []string{"interest_accruals", "payments", "disbursements"} {
		if _, err := s.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE loan_id = $1`, id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	res, err := s.q.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return requireRow(res, models.ErrLoanNotFound)
}

func (s *PostgresStore) ListActiveInterestLoans(ctx context.Context) ([]models.Loan, error) {
	return s.listLoans(ctx, selectLoan+` WHERE status = 'active' AND interest_rate > 0 ORDER BY created_at`)
}

func (s *PostgresStore) ListLoansByCreditor(ctx context.Context, creditorID string) ([]models.Loan, error) {
	return s.listLoans(ctx, selectLoan+` WHERE creditor_id = $1 ORDER BY loan_date DESC, created_at`, creditorID)
}

func (s *PostgresStore) listLoans(ctx context.Context, query string, args ...interface{}) ([]models.Loan, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row scanner) (*models.Loan, error) {
	var (
		l        models.Loan
		typ      string
		freq     string
		status   string
		loanDate time.Time
		dueDate  sql.NullTime
	)
	err := row.Scan(&l.ID, &l.CreditorID, &l.Principal, &l.InterestRate, &typ, &freq,
		&loanDate, &dueDate, &status, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.InterestType = models.InterestType(typ)
	l.AccrualFrequency = models.AccrualFrequency(freq)
	l.Status = models.LoanStatus(status)
	l.LoanDate = civil.DateOf(loanDate)
	if dueDate.Valid {
		d := civil.DateOf(dueDate.Time)
		l.DueDate = &d
	}
	return &l, nil
}

// ==========================
// Disbursements & payments
// ==========================

func (s *PostgresStore) AddDisbursement(ctx context.Context, d *models.Disbursement) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO disbursements (id, loan_id, amount, disbursement_date, notes, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.LoanID, d.Amount, d.DisbursementDate.String(), nullString(d.Notes), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert disbursement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDisbursements(ctx context.Context, loanID string) ([]models.Disbursement, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, loan_id, amount, disbursement_date, COALESCE(notes, ''), created_at
		FROM disbursements WHERE loan_id = $1 ORDER BY disbursement_date, created_at`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list disbursements: %w", err)
	}
	defer rows.Close()

	var out []models.Disbursement
	for rows.Next() {
		var (
			d    models.Disbursement
			date time.Time
		)
		if err := rows.Scan(&d.ID, &d.LoanID, &d.Amount, &date, &d.Notes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan disbursement: %w", err)
		}
		d.DisbursementDate = civil.DateOf(date)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddPayment(ctx context.Context, p *models.Payment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (id, loan_id, amount, payment_date, notes, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.LoanID, p.Amount, p.PaymentDate.String(), nullString(p.Notes), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePayment(ctx context.Context, loanID, paymentID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1 AND loan_id = $2`, paymentID, loanID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireRow(res, models.ErrPaymentNotFound)
}

func (s *PostgresStore) ListPayments(ctx context.Context, loanID string) ([]models.Payment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, loan_id, amount, payment_date, COALESCE(notes, ''), created_at
		FROM payments WHERE loan_id = $1 ORDER BY payment_date, created_at`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var (
			p    models.Payment
			date time.Time
		)
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &date, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.PaymentDate = civil.DateOf(date)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ==========================
// Accruals
// ==========================

func (s *PostgresStore) AddAccruals(ctx context.Context, accruals []models.InterestAccrual) error {
	for start := 0; start < len(accruals); start += s.batchSize {
		end := start + s.batchSize
		if end > len(accruals) {
			end = len(accruals)
		}
		if err := s.insertAccrualBatch(ctx, accruals[start:end]); err != nil {
			return fmt.Errorf("insert accruals %d-%d of %d: %w", start, end, len(accruals), err)
		}
	}
	return nil
}

func (s *PostgresStore) insertAccrualBatch(ctx context.Context, batch []models.InterestAccrual) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO interest_accruals (id, loan_id, amount, accrual_date, interest_type, is_manual, created_at) VALUES `)

	args := make([]interface{}, 0, len(batch)*accrualColumns)
	for i, a := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * accrualColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args, a.ID, a.LoanID, a.Amount, a.AccrualDate.String(), string(a.InterestType), a.IsManual, a.CreatedAt)
	}

	_, err := s.q.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *PostgresStore) DeleteAutomaticAccruals(ctx context.Context, loanID string) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM interest_accruals WHERE loan_id = $1 AND is_manual = false`, loanID)
	if err != nil {
		return 0, fmt.Errorf("delete automatic accruals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete automatic accruals: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListAccruals(ctx context.Context, loanID string) ([]models.InterestAccrual, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, loan_id, amount, accrual_date, interest_type, is_manual, created_at
		FROM interest_accruals WHERE loan_id = $1 ORDER BY accrual_date, created_at`, loanID)
	if err != nil {
		return nil, fmt.Errorf("list accruals: %w", err)
	}
	defer rows.Close()

	var out []models.InterestAccrual
	for rows.Next() {
		var (
			a    models.InterestAccrual
			date time.Time
			typ  string
		)
		if err := rows.Scan(&a.ID, &a.LoanID, &a.Amount, &date, &typ, &a.IsManual, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan accrual: %w", err)
		}
		a.AccrualDate = civil.DateOf(date)
		a.InterestType = models.InterestType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LastAccrualDate(ctx context.Context, loanID string) (*civil.Date, error) {
	var last sql.NullTime
	err := s.q.QueryRowContext(ctx,
		`SELECT MAX(accrual_date) FROM interest_accruals WHERE loan_id = $1`, loanID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("select last accrual date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	d := civil.DateOf(last.Time)
	return &d, nil
}

func (s *PostgresStore) LoanTotals(ctx context.Context, loanID string) (decimal.Decimal, decimal.Decimal, error) {
	var interest, paid decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		`SELECT
			COALESCE((SELECT SUM(amount) FROM interest_accruals WHERE loan_id = $1), 0),
			COALESCE((SELECT SUM(amount) FROM payments WHERE loan_id = $1), 0)`, loanID,
	).Scan(&interest, &paid)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("select loan totals: %w", err)
	}
	return interest, paid, nil
}

// ==========================
// Helpers
// ==========================

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *civil.Date) sql.NullString {
	if d == nil || *d == (civil.Date{}) {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
