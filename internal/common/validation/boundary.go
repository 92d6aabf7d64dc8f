// internal/common/validation/boundary.go
package validation

import (
	"encoding/json"
	"fmt"

	"audit-insights/internal/models"
)

const (
	DefaultCurrency = "USD"
	DefaultLocale   = "en-US"
)

// Defaults fills optional business settings before validation.
type Defaults struct {
	Currency string
	Locale   string
}

func StandardDefaults() Defaults {
	return Defaults{Currency: DefaultCurrency, Locale: DefaultLocale}
}

// ParseRequest validates a raw generation request using the standard defaults.
func ParseRequest(raw []byte) (*models.GenerateRequest, error) {
	return ParseRequestWithDefaults(raw, StandardDefaults())
}

// ParseRequestWithDefaults validates a raw generation request. A missing,
// null or empty currency or locale is filled from d; every other required
// field must be present.
func ParseRequestWithDefaults(raw []byte, d Defaults) (*models.GenerateRequest, error) {
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	if root, ok := doc.(map[string]interface{}); ok {
		if business, ok := root["business"].(map[string]interface{}); ok {
			applyDefault(business, "currency", d.Currency)
			applyDefault(business, "locale", d.Locale)
		}
	}

	var req models.GenerateRequest
	if err := decodeValidated(RequestSchema, doc, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func applyDefault(obj map[string]interface{}, field, value string) {
	if value == "" {
		return
	}
	switch v := obj[field].(type) {
	case nil:
		obj[field] = value
	case string:
		if v == "" {
			obj[field] = value
		}
	}
}

// ParseResponse validates a serialized response, including key uniqueness.
func ParseResponse(raw []byte) (*models.GenerateResponse, error) {
	var resp models.GenerateResponse
	if err := Decode(ResponseSchema, raw, &resp); err != nil {
		return nil, err
	}
	if err := checkUniqueKeys(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EncodeResponse serializes resp and re-validates the bytes, so callers only
// ever hand out documents that satisfy the response schema.
func EncodeResponse(resp *models.GenerateResponse) ([]byte, error) {
	if resp == nil {
		return nil, &ValidationError{Field: rootField, Message: "response is nil", Code: "REQUIRED_FIELD_MISSING"}
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, &ValidationError{Field: rootField, Message: err.Error(), Code: "ENCODE_FAILED"}
	}
	if _, err := ParseResponse(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func checkUniqueKeys(resp *models.GenerateResponse) error {
	seen := make(map[string]bool, len(resp.Insights))
	for i, in := range resp.Insights {
		if seen[in.Key] {
			return &ValidationError{
				Field:   fmt.Sprintf("insights.%d.key", i),
				Message: fmt.Sprintf("duplicate insight key %q", in.Key),
				Code:    "DUPLICATE_KEY",
			}
		}
		seen[in.Key] = true
	}
	return nil
}

// ParseNarrative validates generated narrative text against the narrative
// schema and decodes it into out.
func ParseNarrative(raw []byte, out interface{}) error {
	return Decode(NarrativeSchema, raw, out)
}
