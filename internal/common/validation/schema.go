package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Semantic types an entity can declare in the intent schema.
const (
	TypeString  = "string"
	TypeInteger = "integer"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CoerceValue normalizes a raw entity value to its declared semantic type.
// JSON numbers arrive as float64 and conversational answers arrive as strings,
// so both are accepted for integer entities as long as they parse cleanly.
func CoerceValue(value interface{}, semanticType string) (interface{}, error) {
	switch semanticType {
	case TypeString:
		strVal, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		trimmed := strings.TrimSpace(strVal)
		if trimmed == "" {
			return nil, fmt.Errorf("value is empty")
		}
		return trimmed, nil

	case TypeInteger:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("expected integer, got fractional number %v", v)
			}
			return int(v), nil
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}

	default:
		return nil, fmt.Errorf("unsupported semantic type %q", semanticType)
	}
}

// ValidateEntities checks every collected entity against its declared type.
// Entities without a declared type pass through unchecked.
func ValidateEntities(entities map[string]interface{}, types map[string]string) *ValidationResult {
	errors := []ValidationError{}

	for name, value := range entities {
		semanticType, exists := types[name]
		if !exists {
			continue
		}
		if _, err := CoerceValue(value, semanticType); err != nil {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: err.Error(),
				Code:    "INVALID_TYPE",
			})
		}
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// ValidateRequiredEntities reports the required entities still missing from
// the collected set, in the order the schema declares them.
func ValidateRequiredEntities(entities map[string]interface{}, required []string) *ValidationResult {
	errors := []ValidationError{}

	for _, name := range required {
		if _, exists := entities[name]; !exists {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: "required entity missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
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

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// MissingEntities returns just the field names from a required-entities check.
func (vr *ValidationResult) MissingEntities() []string {
	names := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		if err.Code == "REQUIRED_FIELD_MISSING" {
			names = append(names, err.Field)
		}
	}
	return names
}

// ValidatePlanYear checks a plan year is within the plausible marketplace range.
func ValidatePlanYear(year int) bool {
	return year >= 2014 && year <= 2035
}

// ValidateAge checks an applicant age is plausible.
func ValidateAge(age int) bool {
	return age >= 0 && age <= 120
}

// ValidateURL validates URL format
func ValidateURL(url string) bool {
	urlPattern := regexp.MustCompile(`^(https?|ftp)://[^\s/$.?#].[^\s]*$`)
	return urlPattern.MatchString(url)
}
