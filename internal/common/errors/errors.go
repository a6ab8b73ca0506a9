// Package errors provides the standardized error taxonomy shared by tools, the
// pipeline and the Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable failure code.
type ErrorCode string

// Pipeline taxonomy
const (
	ErrCodeSourceUnavailable     ErrorCode = "SOURCE_UNAVAILABLE"
	ErrCodeAggregationEmpty      ErrorCode = "AGGREGATION_EMPTY"
	ErrCodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	ErrCodeToolNotFound          ErrorCode = "TOOL_NOT_FOUND"
	ErrCodeTemplateError         ErrorCode = "TEMPLATE_ERROR"
	ErrCodeInvalidParameters     ErrorCode = "INVALID_PARAMETERS"
	ErrCodeRunCancelled          ErrorCode = "RUN_CANCELLED"
)

// Collaborator failures
const (
	ErrCodeDeliveryFailed           ErrorCode = "DELIVERY_FAILED"
	ErrCodeUserNotFound             ErrorCode = "USER_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeArchiveIndexFailed       ErrorCode = "ARCHIVE_INDEX_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
}

// Unwrap exposes the underlying error so callers can match worker sentinels.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Describe is the message without the code prefix.
func (e *StandardError) Describe() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	cp := *e
	cp.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is what gets thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the process variables attached to a failed or thrown job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewSourceUnavailableError reports a failed fetcher. Transport failures are retryable,
// malformed payloads are not.
func NewSourceUnavailableError(source string, err error, retryable bool) *StandardError {
	return withCause(newError(ErrCodeSourceUnavailable, fmt.Sprintf("source '%s' unavailable", source), errString(err), retryable), err).
		WithMetadata("source", source)
}

func NewAggregationEmptyError(details string) *StandardError {
	return newError(ErrCodeAggregationEmpty, details, "", false)
}

// NewGenerationUnavailableError reports an LLM failure or an empty completion.
func NewGenerationUnavailableError(err error, retryable bool) *StandardError {
	return withCause(newError(ErrCodeGenerationUnavailable, "summary generation unavailable", errString(err), retryable), err)
}

func NewToolNotFoundError(name string) *StandardError {
	return newError(ErrCodeToolNotFound, fmt.Sprintf("tool '%s' not found", name), "", false)
}

func NewTemplateError(details string) *StandardError {
	return newError(ErrCodeTemplateError, "newsletter template could not be built", details, false)
}

func NewInvalidParametersError(tool string, problems []string) *StandardError {
	return newError(ErrCodeInvalidParameters, fmt.Sprintf("invalid parameters for tool '%s'", tool), strings.Join(problems, "; "), false)
}

// NewInvalidRequestError reports a malformed API or CLI request.
func NewInvalidRequestError(problems []string) *StandardError {
	return newError(ErrCodeInvalidParameters, "invalid request", strings.Join(problems, "; "), false)
}

func NewRunCancelledError(err error) *StandardError {
	return withCause(newError(ErrCodeRunCancelled, "run cancelled", errString(err), false), err)
}

// NewDeliveryFailedError reports a transport failure while sending a newsletter.
func NewDeliveryFailedError(provider string, err error) *StandardError {
	return withCause(newError(ErrCodeDeliveryFailed, fmt.Sprintf("delivery via %s failed", provider), errString(err), true), err)
}

func NewUserNotFoundError(email string) *StandardError {
	return newError(ErrCodeUserNotFound, "subscriber not found", fmt.Sprintf("email: %s", email), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return withCause(newError(ErrCodeDatabaseConnectionFailed, "database connection error", errString(err), true), err)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return withCause(newError(ErrCodeQueryExecutionFailed, "database query execution error", fmt.Sprintf("query: %s, error: %s", query, errString(err)), true), err)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return withCause(newError(ErrCodeDatabaseInsertFailed, "database insert operation failed", errString(err), true), err)
}

func NewArchiveIndexFailedError(index string, err error) *StandardError {
	return withCause(newError(ErrCodeArchiveIndexFailed, "newsletter archive indexing failed", fmt.Sprintf("index: %s, error: %s", index, errString(err)), true), err)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return withCause(newError(ErrCodeSearchQueryFailed, "newsletter archive search failed", fmt.Sprintf("index: %s, error: %s", index, errString(err)), true), err)
}

func NewInternalError(err error) *StandardError {
	return withCause(newError(ErrCodeInternal, "unexpected error", errString(err), false), err)
}

// FromCode rebuilds a StandardError from a serialized code and message, as
// carried in a tool result envelope.
func FromCode(code, message string, retryable bool) *StandardError {
	if code == "" {
		code = string(ErrCodeInternal)
	}
	return newError(ErrorCode(code), message, "", retryable)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return withCause(newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("external service '%s' error", service), errString(err), true), err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return withCause(newError("TIMEOUT_ERROR", fmt.Sprintf("service '%s' timeout", service), errString(err), true), err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("resource not found in %s", service), details, false)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false)
}

func withCause(e *StandardError, err error) *StandardError {
	e.cause = err
	return e
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns how many times the workflow engine should retry a job
// that failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeArchiveIndexFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeDeliveryFailed:
		return 3

	case ErrCodeSourceUnavailable,
		ErrCodeGenerationUnavailable:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine. Codes are
// passed through unchanged.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stage, ok := stdErr.Metadata["stage"]; ok {
		vars["failedStage"] = stage
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a *StandardError. Anything else becomes INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for dashboards and logs.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeSourceUnavailable, ErrCodeAggregationEmpty:
		return "SOURCES"
	case ErrCodeGenerationUnavailable:
		return "AI"
	case ErrCodeTemplateError:
		return "TEMPLATE"
	case ErrCodeToolNotFound, ErrCodeInvalidParameters:
		return "DISPATCH"
	case ErrCodeDeliveryFailed:
		return "DELIVERY"
	}

	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "USER"):
		return "DATABASE"
	case strings.Contains(codeStr, "ARCHIVE") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	default:
		return "OTHER"
	}
}
