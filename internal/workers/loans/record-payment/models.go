// internal/workers/loans/record-payment/models.go
package recordpayment

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Input struct {
	LoanID      string          `json:"loanId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate civil.Date      `json:"paymentDate"`
	Notes       string          `json:"notes,omitempty"`
}

type Output struct {
	LoanID    string `json:"loanId"`
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"`
}
