// internal/workers/loans/change-loan-status/schema.go
package changeloanstatus

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId", "status"],
	"properties": {
		"loanId": ` + validation.IDSchema + `,
		"status": {"type": "string", "enum": ["active", "paid_off", "defaulted"]}
	}
}`)
