package project

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed manifest.schema.json
var manifestSchema []byte

type ValidationError struct {
	Message string
	Path    string
}

func (e *ValidationError) Error() string {
	if e.Path == "" || e.Path == "(root)" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Path)
}

// ValidateManifest checks raw manifest JSON against the embedded schema. It
// returns a *ValidationError describing the most specific problem, or an error
// when validation itself could not run.
func ValidateManifest(jsonData []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(manifestSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if result.Valid() || len(result.Errors()) == 0 {
		return nil
	}

	// Prefer the most specific error
	bestError := result.Errors()[0]
	errorPriority := map[string]int{
		"additional_property_not_allowed": 1,
		"required":                        2,
		"invalid_type":                    3,
		"string_gte":                      4,
	}

	highestPriority := 999
	for _, err := range result.Errors() {
		if priority, exists := errorPriority[err.Type()]; exists && priority < highestPriority {
			bestError = err
			highestPriority = priority
		}
	}

	return &ValidationError{
		Message: friendlyErrorMessage(bestError),
		Path:    bestError.Field(),
	}
}

func friendlyErrorMessage(err gojsonschema.ResultError) string {
	switch err.Type() {
	case "additional_property_not_allowed":
		if propertyName := extractPropertyFromDescription(err.Description()); propertyName != "" {
			return fmt.Sprintf("Unknown property '%s' is not allowed", propertyName)
		}
		return err.Description()
	case "required":
		return fmt.Sprintf("Missing required property '%s'", err.Details()["property"])
	case "invalid_type":
		return fmt.Sprintf("Property '%s' has wrong type (expected %s)", extractFieldName(err.Field()), err.Details()["expected"])
	case "string_gte":
		return fmt.Sprintf("Property '%s' must not be empty", extractFieldName(err.Field()))
	default:
		return err.Description()
	}
}

// extractFieldName returns the last non-index part of a field path, e.g.
// "components.1.props.0.name" -> "name".
func extractFieldName(fieldPath string) string {
	parts := strings.Split(fieldPath, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if !isNumeric(parts[i]) {
			return parts[i]
		}
	}
	return fieldPath
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

func extractPropertyFromDescription(description string) string {
	const prefix, suffix = "Additional property ", " is not allowed"
	start := strings.Index(description, prefix)
	end := strings.Index(description, suffix)
	if start < 0 || end < 0 {
		return ""
	}
	start += len(prefix)
	if start >= end {
		return ""
	}
	return description[start:end]
}
