// internal/workers/loans/create-loan/models.go
package createloan

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

type Input struct {
	CreditorID       string                  `json:"creditorId,omitempty"`
	CreditorName     string                  `json:"creditorName,omitempty"`
	CreditorEmail    string                  `json:"creditorEmail,omitempty"`
	Principal        decimal.Decimal         `json:"principal"`
	InterestRate     decimal.Decimal         `json:"interestRate"`
	InterestType     models.InterestType     `json:"interestType"`
	AccrualFrequency models.AccrualFrequency `json:"accrualFrequency"`
	LoanDate         civil.Date              `json:"loanDate"`
	DueDate          *civil.Date             `json:"dueDate,omitempty"`
	Notes            string                  `json:"notes,omitempty"`
}

type Output struct {
	LoanID     string `json:"loanId"`
	CreditorID string `json:"creditorId"`
	Principal  string `json:"principal"`
	LoanDate   string `json:"loanDate"`
	Status     string `json:"status"`
}
