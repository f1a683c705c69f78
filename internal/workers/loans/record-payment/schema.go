// internal/workers/loans/record-payment/schema.go
package recordpayment

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId", "amount", "paymentDate"],
	"properties": {
		"loanId": ` + validation.IDSchema + `,
		"amount": ` + validation.AmountSchema + `,
		"paymentDate": ` + validation.DateSchema + `,
		"notes": {"type": "string"}
	}
}`)
