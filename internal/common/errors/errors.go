// Package errors provides standardized error handling for the HTTP API and BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"audit-insights/internal/common/validation"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeGateNotMet         ErrorCode = "GATE_NOT_MET"
	ErrCodeRemoteCallFailed   ErrorCode = "REMOTE_CALL_FAILED"
	ErrCodeRemoteCallTimeout  ErrorCode = "REMOTE_CALL_TIMEOUT"
	ErrCodeCancelled          ErrorCode = "CANCELLED"
	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeHistoryUnavailable ErrorCode = "HISTORY_UNAVAILABLE"
	ErrCodePublishFailed      ErrorCode = "PUBLISH_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
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
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

func newError(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable error for a rejected request field.
func NewValidationError(field, reason string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Request validation failed", reason)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewInvalidInputError creates a non-retryable error for undecodable input.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details)
}

// NewRemoteCallFailedError wraps a failed narrative call.
func NewRemoteCallFailedError(err error) *StandardError {
	return newError(ErrCodeRemoteCallFailed, "Narrative generation failed", err.Error())
}

// NewRemoteCallTimeoutError wraps a narrative call that ran out of time.
func NewRemoteCallTimeoutError(err error) *StandardError {
	return newError(ErrCodeRemoteCallTimeout, "Narrative generation timed out", err.Error())
}

// NewCancelledError reports a request that was cancelled before completing.
func NewCancelledError(err error) *StandardError {
	return newError(ErrCodeCancelled, "Request cancelled", err.Error())
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error())
}

// ==========================
// 4. Classification
// ==========================

// Classify maps err to a StandardError. Sentinel errors whose text is a
// known code (errors.New("REMOTE_CALL_TIMEOUT")) are matched anywhere in
// the wrap chain; the first known code found wins.
func Classify(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	var verr *validation.ValidationError
	if stderrors.As(err, &verr) {
		e := NewValidationError(verr.Field, verr.Message)
		if verr.Code != "" {
			e.Metadata["reason"] = verr.Code
		}
		return e
	}

	if code, ok := findCode(err); ok {
		return newError(code, messageFor(code), err.Error())
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return NewCancelledError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewRemoteCallTimeoutError(err)
	}
	return NewInternalError(err)
}

var knownCodes = map[string]ErrorCode{
	string(ErrCodeValidationFailed):   ErrCodeValidationFailed,
	string(ErrCodeInvalidInput):       ErrCodeInvalidInput,
	string(ErrCodeGateNotMet):         ErrCodeGateNotMet,
	string(ErrCodeRemoteCallFailed):   ErrCodeRemoteCallFailed,
	string(ErrCodeRemoteCallTimeout):  ErrCodeRemoteCallTimeout,
	string(ErrCodeCancelled):          ErrCodeCancelled,
	string(ErrCodeCatalogUnavailable): ErrCodeCatalogUnavailable,
	string(ErrCodeCacheUnavailable):   ErrCodeCacheUnavailable,
	string(ErrCodeHistoryUnavailable): ErrCodeHistoryUnavailable,
	string(ErrCodePublishFailed):      ErrCodePublishFailed,
}

// findCode walks the wrap tree depth first.
func findCode(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	if code, ok := knownCodes[err.Error()]; ok {
		return code, true
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if code, ok := findCode(inner); ok {
				return code, true
			}
		}
	case interface{ Unwrap() error }:
		return findCode(e.Unwrap())
	}
	return "", false
}

func messageFor(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "Request validation failed"
	case ErrCodeInvalidInput:
		return "Invalid input"
	case ErrCodeGateNotMet:
		return "Not enough meaningful responses"
	case ErrCodeRemoteCallFailed:
		return "Narrative generation failed"
	case ErrCodeRemoteCallTimeout:
		return "Narrative generation timed out"
	case ErrCodeCancelled:
		return "Request cancelled"
	case ErrCodeCatalogUnavailable:
		return "Knowledge catalog unavailable"
	case ErrCodeCacheUnavailable:
		return "Cache unavailable"
	case ErrCodeHistoryUnavailable:
		return "Insight history unavailable"
	case ErrCodePublishFailed:
		return "Event publish failed"
	}
	return "Unexpected error"
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRemoteCallFailed,
		ErrCodeCatalogUnavailable,
		ErrCodeHistoryUnavailable,
		ErrCodeCacheUnavailable:
		return 3

	case ErrCodeRemoteCallTimeout:
		return 2

	case ErrCodeCancelled:
		return 1

	default:
		return 0 // validation and internal errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
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
// 6. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REMOTE"):
		return "NARRATIVE"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "HISTORY") || strings.Contains(codeStr, "CATALOG"):
		return "STORAGE"
	case strings.Contains(codeStr, "PUBLISH"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "GATE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CANCELLED"):
		return "LIFECYCLE"
	default:
		return "OTHER"
	}
}
