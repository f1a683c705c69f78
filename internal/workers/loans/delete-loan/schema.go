// internal/workers/loans/delete-loan/schema.go
package deleteloan

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["loanId"],
	"properties": {
		"loanId": ` + validation.IDSchema + `
	}
}`)
