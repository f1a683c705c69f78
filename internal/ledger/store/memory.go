package store

import (
	"context"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

type memData struct {
	creditors     map[string]models.Creditor
	loans         map[string]models.Loan
	disbursements []models.Disbursement
	payments      []models.Payment
	accruals      []models.InterestAccrual
}

func (d *memData) clone() *memData {
	out := &memData{
		creditors:     make(map[string]models.Creditor, len(d.creditors)),
		loans:         make(map[string]models.Loan, len(d.loans)),
		disbursements: append([]models.Disbursement(nil), d.disbursements...),
		payments:      append([]models.Payment(nil), d.payments...),
		accruals:      append([]models.InterestAccrual(nil), d.accruals...),
	}
	for k, v := range d.creditors {
		out.creditors[k] = v
	}
	for k, v := range d.loans {
		if v.DueDate != nil {
			due := *v.DueDate
			v.DueDate = &due
		}
		out.loans[k] = v
	}
	return out
}

// MemoryStore keeps the ledger in process memory. A single mutex serialises
// every call, and InTx holds it for the whole transaction.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		creditors: map[string]models.Creditor{},
		loans:     map[string]models.Loan{},
	}}
}

// InTx runs fn on a copy of the data and swaps it in only if fn succeeds.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

// ==========================
// Creditors
// ==========================

func (m *MemoryStore) CreateCreditor(ctx context.Context, c *models.Creditor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.creditors[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetCreditor(ctx context.Context, id string) (*models.Creditor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.creditors[id]
	if !ok {
		return nil, models.ErrCreditorNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetCreditorByToken(ctx context.Context, token string) (*models.Creditor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.creditors {
		if c.AccessToken == token {
			c := c
			return &c, nil
		}
	}
	return nil, models.ErrCreditorNotFound
}

func (m *MemoryStore) UpdateCreditorToken(ctx context.Context, creditorID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.creditors[creditorID]
	if !ok {
		return models.ErrCreditorNotFound
	}
	c.AccessToken = token
	m.data.creditors[creditorID] = c
	return nil
}

// ==========================
// Loans
// ==========================

func (m *MemoryStore) CreateLoan(ctx context.Context, l *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.loans[l.ID] = *l
	return nil
}

func (m *MemoryStore) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.data.loans[id]
	if !ok {
		return nil, models.ErrLoanNotFound
	}
	return &l, nil
}

func (m *MemoryStore) UpdateLoan(ctx context.Context, l *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.data.loans[l.ID]
	if !ok {
		return models.ErrLoanNotFound
	}
	updated := *l
	updated.CreditorID = existing.CreditorID
	updated.CreatedAt = existing.CreatedAt
	m.data.loans[l.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteLoan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.loans[id]; !ok {
		return models.ErrLoanNotFound
	}
	m.data.accruals = filter(m.data.accruals, func(a models.InterestAccrual) bool { return a.LoanID != id })
	m.data.payments = filter(m.data.payments, func(p models.Payment) bool { return p.LoanID != id })
	m.data.disbursements = filter(m.data.disbursements, func(d models.Disbursement) bool { return d.LoanID != id })
	delete(m.data.loans, id)
	return nil
}

func (m *MemoryStore) ListActiveInterestLoans(ctx context.Context) ([]models.Loan, error) {
	return m.listLoans(func(l models.Loan) bool {
		return l.Status == models.LoanStatusActive && l.InterestRate.IsPositive()
	}), nil
}

func (m *MemoryStore) ListLoansByCreditor(ctx context.Context, creditorID string) ([]models.Loan, error) {
	loans := m.listLoans(func(l models.Loan) bool { return l.CreditorID == creditorID })
	sort.SliceStable(loans, func(i, j int) bool { return loans[j].LoanDate.Before(loans[i].LoanDate) })
	return loans, nil
}

func (m *MemoryStore) listLoans(keep func(models.Loan) bool) []models.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Loan
	for _, l := range m.data.loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ==========================
// Disbursements & payments
// ==========================

func (m *MemoryStore) AddDisbursement(ctx context.Context, d *models.Disbursement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.disbursements = append(m.data.disbursements, *d)
	return nil
}

func (m *MemoryStore) ListDisbursements(ctx context.Context, loanID string) ([]models.Disbursement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := filter(m.data.disbursements, func(d models.Disbursement) bool { return d.LoanID == loanID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisbursementDate.Before(out[j].DisbursementDate) })
	return out, nil
}

func (m *MemoryStore) AddPayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.payments = append(m.data.payments, *p)
	return nil
}

func (m *MemoryStore) DeletePayment(ctx context.Context, loanID, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.data.payments)
	m.data.payments = filter(m.data.payments, func(p models.Payment) bool {
		return !(p.ID == paymentID && p.LoanID == loanID)
	})
	if len(m.data.payments) == before {
		return models.ErrPaymentNotFound
	}
	return nil
}

func (m *MemoryStore) ListPayments(ctx context.Context, loanID string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := filter(m.data.payments, func(p models.Payment) bool { return p.LoanID == loanID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

// ==========================
// Accruals
// ==========================

func (m *MemoryStore) AddAccruals(ctx context.Context, accruals []models.InterestAccrual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.accruals = append(m.data.accruals, accruals...)
	return nil
}

func (m *MemoryStore) DeleteAutomaticAccruals(ctx context.Context, loanID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.data.accruals)
	m.data.accruals = filter(m.data.accruals, func(a models.InterestAccrual) bool {
		return a.LoanID != loanID || a.IsManual
	})
	return int64(before - len(m.data.accruals)), nil
}

func (m *MemoryStore) ListAccruals(ctx context.Context, loanID string) ([]models.InterestAccrual, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := filter(m.data.accruals, func(a models.InterestAccrual) bool { return a.LoanID == loanID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].AccrualDate.Before(out[j].AccrualDate) })
	return out, nil
}

func (m *MemoryStore) LastAccrualDate(ctx context.Context, loanID string) (*civil.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *civil.Date
	for _, a := range m.data.accruals {
		if a.LoanID != loanID {
			continue
		}
		if last == nil || a.AccrualDate.After(*last) {
			d := a.AccrualDate
			last = &d
		}
	}
	return last, nil
}

func (m *MemoryStore) LoanTotals(ctx context.Context, loanID string) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	interest, paid := decimal.Zero, decimal.Zero
	for _, a := range m.data.accruals {
		if a.LoanID == loanID {
			interest = interest.Add(a.Amount)
		}
	}
	for _, p := range m.data.payments {
		if p.LoanID == loanID {
			paid = paid.Add(p.Amount)
		}
	}
	return interest, paid, nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
