package tools

import (
	"newsletter-agent/internal/common/errors"
)

// ToolResult is the uniform envelope every dispatch returns. Data is meaningful
// when Success is true, Error otherwise.
type ToolResult struct {
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
}

func OK(data map[string]interface{}) ToolResult {
	if data == nil {
		data = map[string]interface{}{}
	}
	return ToolResult{Success: true, Data: data}
}

// Fail wraps err in a failed envelope carrying its taxonomy code.
func Fail(err error) ToolResult {
	stdErr := errors.AsStandardError(err)
	return ToolResult{
		Success:   false,
		Error:     stdErr.Describe(),
		Code:      string(stdErr.Code),
		Retryable: stdErr.Retryable,
	}
}

// Err returns nil for a successful result and the carried error otherwise.
func (r ToolResult) Err() *errors.StandardError {
	if r.Success {
		return nil
	}
	return errors.FromCode(r.Code, r.Error, r.Retryable)
}
