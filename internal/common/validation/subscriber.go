package validation

// SubscriberSchema validates the registration payload.
var SubscriberSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"email", "topics"},
	"properties": map[string]interface{}{
		"email": map[string]interface{}{"type": "string", "format": "email"},
		"name":  map[string]interface{}{"type": "string", "maxLength": 120},
		"topics": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]interface{}{"type": "string", "minLength": 1},
		},
		"news_sources": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"delivery_time": map[string]interface{}{
			"type":    "string",
			"pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$",
		},
		"output_format": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"html", "plain-text", "text", "both"},
		},
	},
}

// ValidateSubscriber validates a decoded registration payload.
func ValidateSubscriber(payload map[string]interface{}) (*ValidationResult, error) {
	return ValidateInput("subscriber", payload, SubscriberSchema)
}
