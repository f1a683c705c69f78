// internal/workers/loans/record-disbursement/schema.go
package recorddisbursement

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId", "amount", "disbursementDate"],
	"properties": {
		"loanId": ` + validation.IDSchema + `,
		"amount": ` + validation.AmountSchema + `,
		"disbursementDate": ` + validation.DateSchema + `,
		"notes": {"type": "string"}
	}
}`)
