// internal/workers/loans/change-loan-status/models.go
package changeloanstatus

import "loan-ledger/internal/models"

type Input struct {
	LoanID string            `json:"loanId"`
	Status models.LoanStatus `json:"status"`
}

type Output struct {
	LoanID string `json:"loanId"`
	Status string `json:"status"`
}
