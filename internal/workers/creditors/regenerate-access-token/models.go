// internal/workers/creditors/regenerate-access-token/models.go
package regenerateaccesstoken

type Input struct {
	CreditorID string `json:"creditorId"`
}

// Output carries the new portal token back to the process so it can be
// delivered to the creditor.
type Output struct {
	CreditorID  string `json:"creditorId"`
	AccessToken string `json:"accessToken"`
}
