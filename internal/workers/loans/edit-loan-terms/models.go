// internal/workers/loans/edit-loan-terms/models.go
package editloanterms

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"loan-ledger/internal/models"
)

type Input struct {
	LoanID           string                  `json:"loanId"`
	InterestRate     decimal.Decimal         `json:"interestRate"`
	InterestType     models.InterestType     `json:"interestType"`
	AccrualFrequency models.AccrualFrequency `json:"accrualFrequency"`
	DueDate          *civil.Date             `json:"dueDate,omitempty"`
	Notes            string                  `json:"notes,omitempty"`
	// PreviousTerms are the terms the editor started from, when the process
	// captured them.
	PreviousTerms *models.Terms `json:"previousTerms,omitempty"`
}

type Output struct {
	LoanID          string `json:"loanId"`
	TermsChanged    bool   `json:"termsChanged"`
	AccrualsDeleted int64  `json:"accrualsDeleted"`
	AccrualsWritten int    `json:"accrualsWritten"`
}
