// Package errors provides standardized error handling for the assistant services.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSchemaLoadFailed       ErrorCode = "SCHEMA_LOAD_FAILED"
	ErrCodeSchemaReloadFailed     ErrorCode = "SCHEMA_RELOAD_FAILED"
	ErrCodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeUnknownIntent          ErrorCode = "UNKNOWN_INTENT"

	ErrCodeDatasetLoadFailed        ErrorCode = "DATASET_LOAD_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeIntentParsingFailed       ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout          ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeClassificationUnavailable ErrorCode = "CLASSIFICATION_UNAVAILABLE"
	ErrCodeWebSearchTimeout          ErrorCode = "WEB_SEARCH_TIMEOUT"

	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionEvicted  ErrorCode = "SESSION_EVICTED"

	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeEntityTypeMismatch ErrorCode = "ENTITY_TYPE_MISMATCH"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSchemaLoadFailedError creates a non-retryable schema load error. Load
// failures at startup are fatal.
func NewSchemaLoadFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaLoadFailed,
		Message:   "Intent schema load failed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaReloadFailedError creates a non-retryable reload error. The
// previously active schema stays in service.
func NewSchemaReloadFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaReloadFailed,
		Message:   "Intent schema reload failed, keeping previous schema",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaValidationFailedError creates a non-retryable schema validation error.
func NewSchemaValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaValidationFailed,
		Message:   "Intent schema document failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownIntentError creates a non-retryable unknown intent error.
func NewUnknownIntentError(intent string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownIntent,
		Message:   "Intent is not defined in the active schema",
		Details:   fmt.Sprintf("intent: %s", intent),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetLoadFailedError creates a non-retryable dataset load error. Load
// failures at startup are fatal.
func NewDatasetLoadFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatasetLoadFailed,
		Message:   "Dataset load failed",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentParsingFailedError creates a retryable intent parsing error.
func NewIntentParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Intent parsing API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentAPITimeoutError creates a retryable intent API timeout error.
func NewIntentAPITimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentAPITimeout,
		Message:   "Intent parsing API timeout",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassificationUnavailableError creates a non-retryable error for an open
// classifier circuit. Callers surface it to the user instead of retrying.
func NewClassificationUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationUnavailable,
		Message:   "Intent classification temporarily unavailable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebSearchTimeoutError creates a non-retryable (returns empty) web search timeout error.
func NewWebSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeWebSearchTimeout,
		Message:   "Web search API timeout",
		Details:   "Search call exceeded timeout threshold",
		Retryable: false, // fail open: return empty, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable session lookup error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionEvictedError creates a non-retryable eviction error for a turn
// whose session expired while the turn was in flight.
func NewSessionEvictedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionEvicted,
		Message:   "Session expired during processing",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityTypeMismatchError creates a non-retryable entity type error. The
// dialogue layer re-asks the question instead of failing the turn.
func NewEntityTypeMismatchError(entity, expected string, value interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityTypeMismatch,
		Message:   "Entity value does not match its declared type",
		Details:   fmt.Sprintf("entity: %s, expected: %s, value: %v", entity, expected, value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Status Mapping
// ==========================

// HTTPStatusMapping maps internal error codes to HTTP response statuses.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeSchemaLoadFailed:              http.StatusInternalServerError,
	ErrCodeSchemaReloadFailed:            http.StatusInternalServerError,
	ErrCodeSchemaValidationFailed:        http.StatusInternalServerError,
	ErrCodeUnknownIntent:                 http.StatusUnprocessableEntity,
	ErrCodeDatasetLoadFailed:             http.StatusInternalServerError,
	ErrCodeDatabaseConnectionFailed:      http.StatusServiceUnavailable,
	ErrCodeQueryExecutionFailed:          http.StatusInternalServerError,
	ErrCodeElasticsearchConnectionFailed: http.StatusServiceUnavailable,
	ErrCodeSearchQueryFailed:             http.StatusInternalServerError,
	ErrCodeIntentParsingFailed:           http.StatusBadGateway,
	ErrCodeIntentAPITimeout:              http.StatusGatewayTimeout,
	ErrCodeClassificationUnavailable:     http.StatusServiceUnavailable,
	ErrCodeWebSearchTimeout:              http.StatusGatewayTimeout,
	ErrCodeSessionNotFound:               http.StatusNotFound,
	ErrCodeSessionEvicted:                http.StatusGone,
	ErrCodeInvalidRequest:                http.StatusBadRequest,
	ErrCodeEntityTypeMismatch:            http.StatusBadRequest,
	ErrCodeNotificationSendFailed:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to 500.
func GetHTTPStatus(code ErrorCode) int {
	if status, exists := HTTPStatusMapping[code]; exists {
		return status
	}
	return http.StatusInternalServerError
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeIntentParsingFailed:
		return 3 // Retryable technical errors

	case ErrCodeIntentAPITimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INTENT"):
		return "SCHEMA/INTENT"
	case strings.Contains(codeStr, "DATASET") || strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATASET"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "MISMATCH"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
