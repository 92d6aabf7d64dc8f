// internal/common/validation/schema.go
package validation

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const rootField = "(root)"

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("VALIDATION_FAILED")

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// First returns the first failing field, or nil for a valid result.
func (r *ValidationResult) First() *ValidationError {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	e := r.Errors[0]
	return &e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Schema is a compiled JSON schema with a name for diagnostics.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

func (s *Schema) Name() string {
	return s.name
}

var (
	RequestSchema   = mustLoad("request")
	ResponseSchema  = mustLoad("response")
	NarrativeSchema = mustLoad("narrative")
)

func mustLoad(name string) *Schema {
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("validation: read schema %s: %v", name, err))
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("validation: compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: compiled}
}

// Validate checks a decoded document (maps, slices, scalars) against schema.
// gojsonschema reports errors in no fixed order, so they are sorted by field
// path: document-level errors first, then segment by segment with array
// indices compared numerically and property names alphabetically. First is
// therefore the same field on every run.
func Validate(schema *Schema, doc interface{}) *ValidationResult {
	result, err := schema.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   rootField,
				Message: err.Error(),
				Code:    "SCHEMA_ERROR",
			}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldPath(re),
			Message: re.Description(),
			Code:    errorCode(re.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return lessPath(errs[i].Field, errs[j].Field)
	})

	return &ValidationResult{Valid: false, Errors: errs}
}

// Decode parses raw JSON, validates it against schema and decodes it into out.
// Nothing is written to out when validation fails.
func Decode(schema *Schema, raw []byte, out interface{}) error {
	doc, err := decodeDocument(raw)
	if err != nil {
		return err
	}
	return decodeValidated(schema, doc, out)
}

func decodeDocument(raw []byte) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{
			Field:   rootField,
			Message: fmt.Sprintf("malformed JSON: %v", err),
			Code:    "MALFORMED_JSON",
		}
	}
	return doc, nil
}

func decodeValidated(schema *Schema, doc interface{}, out interface{}) error {
	if first := Validate(schema, doc).First(); first != nil {
		return first
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Field: rootField, Message: err.Error(), Code: "ENCODE_FAILED"}
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return &ValidationError{Field: rootField, Message: err.Error(), Code: "INVALID_TYPE"}
	}
	return nil
}

func lessPath(a, b string) bool {
	if a == rootField || b == rootField {
		return a == rootField && b != rootField
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for k := 0; k < len(as) && k < len(bs); k++ {
		if as[k] == bs[k] {
			continue
		}
		ai, aerr := strconv.Atoi(as[k])
		bi, berr := strconv.Atoi(bs[k])
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return as[k] < bs[k]
	}
	return len(as) < len(bs)
}

func fieldPath(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok && prop != "" {
			switch {
			case field == rootField || field == "":
				return prop
			case field == prop || strings.HasSuffix(field, "."+prop):
				return field
			}
			return field + "." + prop
		}
	}
	if field == "" {
		return rootField
	}
	return field
}

func errorCode(t string) string {
	switch t {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "invalid_type":
		return "INVALID_TYPE"
	case "number_gte", "number_lte", "number_gt", "number_lt":
		return "OUT_OF_RANGE"
	case "pattern", "format":
		return "PATTERN_MISMATCH"
	default:
		return strings.ToUpper(t)
	}
}
