// internal/workers/loans/create-loan/schema.go
package createloan

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["principal", "interestRate", "interestType", "accrualFrequency", "loanDate"],
	"anyOf": [
		{"required": ["creditorId"]},
		{"required": ["creditorName"]}
	],
	"properties": {
		"creditorId": ` + validation.IDSchema + `,
		"creditorName": {"type": "string", "minLength": 1, "maxLength": 200},
		"creditorEmail": {"type": "string"},
		"principal": ` + validation.AmountSchema + `,
		"interestRate": ` + validation.RateSchema + `,
		"interestType": {"type": "string", "enum": ["simple", "compound"]},
		"accrualFrequency": {"type": "string", "enum": ["daily", "monthly"]},
		"loanDate": ` + validation.DateSchema + `,
		"dueDate": {"type": ["string", "null"], "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"notes": {"type": "string"}
	}
}`)
