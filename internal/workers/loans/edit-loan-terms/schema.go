// internal/workers/loans/edit-loan-terms/schema.go
package editloanterms

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId", "interestRate", "interestType", "accrualFrequency"],
	"definitions": {
		"interestType": {"type": "string", "enum": ["simple", "compound"]},
		"accrualFrequency": {"type": "string", "enum": ["daily", "monthly"]}
	},
	"properties": {
		"loanId": ` + validation.IDSchema + `,
		"interestRate": ` + validation.RateSchema + `,
		"interestType": {"$ref": "#/definitions/interestType"},
		"accrualFrequency": {"$ref": "#/definitions/accrualFrequency"},
		"dueDate": {"type": ["string", "null"], "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"notes": {"type": "string"},
		"previousTerms": {
			"type": ["object", "null"],
			"required": ["interestRate", "interestType", "accrualFrequency"],
			"properties": {
				"interestRate": ` + validation.RateSchema + `,
				"interestType": {"$ref": "#/definitions/interestType"},
				"accrualFrequency": {"$ref": "#/definitions/accrualFrequency"}
			}
		}
	}
}`)
