// internal/workers/loans/record-manual-accrual/models.go
package recordmanualaccrual

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Input struct {
	LoanID      string          `json:"loanId"`
	Amount      decimal.Decimal `json:"amount"`
	AccrualDate civil.Date      `json:"accrualDate"`
}

type Output struct {
	LoanID    string `json:"loanId"`
	AccrualID string `json:"accrualId"`
	Amount    string `json:"amount"`
}
