// Package validation checks request and job payloads against JSON Schemas
// before they reach the intake core.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names registered at init.
const (
	CreateQuestion = "create-question"
	UpdateQuestion = "update-question"
	ReorderQuest   = "reorder-question"
	SubmitAnswer   = "submit-answer"
	ReviewTicket   = "review-ticket"

	ReviewTicketJob = "review-ticket-job"
)

var rawSchemas = map[string]string{
	CreateQuestion: `{
		"type": "object",
		"properties": {
			"title":       {"type": "string", "minLength": 1, "maxLength": 500},
			"description": {"type": "string", "maxLength": 5000}
		},
		"required": ["title"],
		"additionalProperties": false
	}`,
	UpdateQuestion: `{
		"type": "object",
		"properties": {
			"title":       {"type": "string", "maxLength": 500},
			"description": {"type": "string", "maxLength": 5000},
			"isActive":    {"type": "boolean"}
		},
		"additionalProperties": false
	}`,
	ReorderQuest: `{
		"type": "object",
		"properties": {
			"direction": {"type": "string", "enum": ["up", "down"]}
		},
		"required": ["direction"],
		"additionalProperties": false
	}`,
	SubmitAnswer: `{
		"type": "object",
		"properties": {
			"questionId": {"type": "string", "minLength": 1},
			"answer":     {"type": "string", "maxLength": 10000}
		},
		"required": ["questionId", "answer"],
		"additionalProperties": false
	}`,
	ReviewTicket: `{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["approved", "rejected"]}
		},
		"required": ["status"],
		"additionalProperties": false
	}`,
	// Job variables carry the whole process scope, so extra keys are allowed.
	ReviewTicketJob: `{
		"type": "object",
		"properties": {
			"ticketId":   {"type": "string", "minLength": 1},
			"decision":   {"type": "string", "enum": ["approved", "rejected"]},
			"reviewerId": {"type": "string", "minLength": 1}
		},
		"required": ["ticketId", "decision", "reviewerId"]
	}`,
}

var compiled = mustCompile(rawSchemas)

func mustCompile(raw map[string]string) map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(raw))
	for name, body := range raw {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(body))
		if err != nil {
			panic(fmt.Sprintf("validation: schema %s does not compile: %v", name, err))
		}
		out[name] = s
	}
	return out
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

// ValidateJSON validates a raw JSON document against a registered schema.
func ValidateJSON(schemaName string, doc []byte) (*ValidationResult, error) {
	schema, ok := compiled[schemaName]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}
	if !json.Valid(doc) {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "body is not valid JSON",
			Code:    "INVALID_JSON",
		}}}, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

// ValidateInput validates an already decoded document, e.g. job variables.
func ValidateInput(schemaName string, input map[string]interface{}) (*ValidationResult, error) {
	schema, ok := compiled[schemaName]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
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

// Summary joins every error into one line for error details.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
