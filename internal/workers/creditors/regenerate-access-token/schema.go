// internal/workers/creditors/regenerate-access-token/schema.go
package regenerateaccesstoken

import "loan-ledger/internal/common/validation"

// InputSchema validates job variables before they are decoded into Input.
var InputSchema = validation.MustCompile(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["creditorId"],
	"properties": {
		"creditorId": ` + validation.IDSchema + `
	}
}`)
