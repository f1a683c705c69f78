// internal/models/loan.go
package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type InterestType string

const (
	InterestTypeSimple   InterestType = "simple"
	InterestTypeCompound InterestType = "compound"
)

func (t InterestType) Valid() bool {
	return t == InterestTypeSimple || t == InterestTypeCompound
}

type AccrualFrequency string

const (
	AccrualFrequencyDaily   AccrualFrequency = "daily"
	AccrualFrequencyMonthly AccrualFrequency = "monthly"
)

func (f AccrualFrequency) Valid() bool {
	return f == AccrualFrequencyDaily || f == AccrualFrequencyMonthly
}

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusPaidOff   LoanStatus = "paid_off"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusPaidOff, LoanStatusDefaulted:
		return true
	}
	return false
}

// Loan is the ledger header. Once disbursements exist, Principal is their sum
// and LoanDate is the earliest disbursement date.
type Loan struct {
	ID               string           `json:"id"`
	CreditorID       string           `json:"creditorId"`
	Principal        decimal.Decimal  `json:"principal"`
	InterestRate     decimal.Decimal  `json:"interestRate"`
	InterestType     InterestType     `json:"interestType"`
	AccrualFrequency AccrualFrequency `json:"accrualFrequency"`
	LoanDate         civil.Date       `json:"loanDate"`
	DueDate          *civil.Date      `json:"dueDate,omitempty"`
	Status           LoanStatus       `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Terms returns the fields that drive interest accrual.
func (l *Loan) Terms() Terms {
	return Terms{
		InterestRate:     l.InterestRate,
		InterestType:     l.InterestType,
		AccrualFrequency: l.AccrualFrequency,
	}
}

// Terms groups the interest parameters of a loan.
type Terms struct {
	InterestRate     decimal.Decimal  `json:"interestRate"`
	InterestType     InterestType     `json:"interestType"`
	AccrualFrequency AccrualFrequency `json:"accrualFrequency"`
}

// Equal compares rates numerically so "12" and "12.00" are the same term.
func (t Terms) Equal(o Terms) bool {
	return t.InterestRate.Equal(o.InterestRate) &&
		t.InterestType == o.InterestType &&
		t.AccrualFrequency == o.AccrualFrequency
}

type Creditor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Disbursement struct {
	ID               string          `json:"id"`
	LoanID           string          `json:"loanId"`
	Amount           decimal.Decimal `json:"amount"`
	DisbursementDate civil.Date      `json:"disbursementDate"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type Payment struct {
	ID          string          `json:"id"`
	LoanID      string          `json:"loanId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate civil.Date      `json:"paymentDate"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// InterestAccrual is one recorded interest charge. Rows with IsManual=false are
// owned by the accrual engine and are replaced wholesale on regeneration.
type InterestAccrual struct {
	ID           string          `json:"id"`
	LoanID       string          `json:"loanId"`
	Amount       decimal.Decimal `json:"amount"`
	AccrualDate  civil.Date      `json:"accrualDate"`
	InterestType InterestType    `json:"interestType"`
	IsManual     bool            `json:"isManual"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// LoanSummary is the derived balance view of a loan.
type LoanSummary struct {
	Loan               Loan              `json:"loan"`
	TotalInterest      decimal.Decimal   `json:"totalInterest"`
	TotalPaid          decimal.Decimal   `json:"totalPaid"`
	OutstandingBalance decimal.Decimal   `json:"outstandingBalance"`
	DisplayBalance     decimal.Decimal   `json:"balance"`
	Disbursements      []Disbursement    `json:"disbursements,omitempty"`
	Payments           []Payment         `json:"payments,omitempty"`
	Accruals           []InterestAccrual `json:"accruals,omitempty"`
}

// OutstandingBalance is principal + accrued interest - payments, unfloored.
func OutstandingBalance(principal, totalInterest, totalPaid decimal.Decimal) decimal.Decimal {
	return principal.Add(totalInterest).Sub(totalPaid)
}

// DisplayBalance floors a balance at zero.
func DisplayBalance(balance decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
