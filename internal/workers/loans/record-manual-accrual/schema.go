// internal/workers/loans/record-manual-accrual/schema.go
package recordmanualaccrual

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId", "amount", "accrualDate"],
	"properties": {
		"loanId": ` + validation.IDSchema + `,
		"amount": ` + validation.AmountSchema + `,
		"accrualDate": ` + validation.DateSchema + `
	}
}`)
