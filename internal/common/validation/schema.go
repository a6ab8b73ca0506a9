package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"newsletter-agent/internal/common/topics"

	"github.com/xeipuuv/gojsonschema"
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

// Validator checks documents against one compiled JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles schema, a decoded JSON Schema document.
func NewValidator(schema map[string]interface{}) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks doc. A nil doc is validated as an empty object.
func (v *Validator) Validate(doc map[string]interface{}) *ValidationResult {
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "UNREADABLE_DOCUMENT"}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return out
}

var (
	validatorCache = map[string]*Validator{}
	validatorMu    sync.Mutex
)

// ValidateInput validates input against schema, caching the compiled schema
// under name.
func ValidateInput(name string, input map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	validatorMu.Lock()
	v, ok := validatorCache[name]
	if !ok {
		var err error
		v, err = NewValidator(schema)
		if err != nil {
			validatorMu.Unlock()
			return nil, err
		}
		validatorCache[name] = v
	}
	validatorMu.Unlock()

	return v.Validate(input), nil
}

// GetErrorMessages returns "field: message" for every error.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	deliveryTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	urlPattern          = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateDeliveryTime accepts 24h "HH:MM".
func ValidateDeliveryTime(value string) bool {
	return deliveryTimePattern.MatchString(value)
}

func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}

// NormalizeTopics lowercases, trims and dedupes topics, keeping first-seen order.
func NormalizeTopics(in []string) []string {
	return topics.Normalize(in)
}
