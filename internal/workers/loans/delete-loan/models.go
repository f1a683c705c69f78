// internal/workers/loans/delete-loan/models.go
package deleteloan

type Input struct {
	LoanID string `json:"loanId"`
}

type Output struct {
	LoanID  string `json:"loanId"`
	Deleted bool   `json:"deleted"`
}
