// internal/workers/loans/record-disbursement/models.go
package recorddisbursement

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Input struct {
	LoanID           string          `json:"loanId"`
	Amount           decimal.Decimal `json:"amount"`
	DisbursementDate civil.Date      `json:"disbursementDate"`
	Notes            string          `json:"notes,omitempty"`
}

type Output struct {
	LoanID    string `json:"loanId"`
	Principal string `json:"principal"`
	LoanDate  string `json:"loanDate"`
}
