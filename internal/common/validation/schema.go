// Package validation checks job variables against JSON schemas before they are
// decoded into typed worker inputs.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"loan-ledger/internal/models"
)

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal and panics if it is malformed. Worker
// schemas are package constants, so a bad one is a programming error.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validate checks a JSON document against the schema.
func (s *Schema) Validate(document []byte) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: err.Error(),
			Code:    "INVALID_JSON",
		}}}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// Decode validates variables against the schema and unmarshals them into out.
// Both failures wrap models.ErrInvalidInput.
func Decode(variables string, schema *Schema, out interface{}) error {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}

	if res := schema.Validate([]byte(variables)); !res.Valid {
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(res.GetErrorMessages(), "; "))
	}
	if err := json.Unmarshal([]byte(variables), out); err != nil {
		return fmt.Errorf("%w: parse variables: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Shared schema fragments for worker input schemas.
const (
	// AmountSchema accepts a positive decimal as a JSON string or number.
	AmountSchema = `{"type": ["string", "number"], "pattern": "^[0-9]+(\\.[0-9]+)?$", "exclusiveMinimum": 0}`
	// RateSchema accepts a non-negative annual percentage.
	RateSchema = `{"type": ["string", "number"], "pattern": "^[0-9]+(\\.[0-9]+)?$", "minimum": 0}`
	// DateSchema accepts a calendar date, YYYY-MM-DD.
	DateSchema = `{"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}`
	// IDSchema accepts a non-empty identifier.
	IDSchema = `{"type": "string", "minLength": 1}`
)
