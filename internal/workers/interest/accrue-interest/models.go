// internal/workers/interest/accrue-interest/models.go
package accrueinterest

type Output struct {
	Date         string `json:"date"`
	LoansAccrued int    `json:"loansAccrued"`
	LoansSkipped int    `json:"loansSkipped"`
	LoansFailed  int    `json:"loansFailed"`
	Message      string `json:"message"`
}
