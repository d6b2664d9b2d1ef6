package action

import (
	"errors"
	"fmt"
)

// ErrorCode identifies well-known domain error categories used across the
// planner-executor core:
// document, validation, planning, runtime and infrastructure errors all
// resolve to one of these codes so the CLI can format a consistent message
// regardless of which layer raised it.
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate   ErrorCode = "DUPLICATE_ID"
	ErrCodeDependency  ErrorCode = "DEPENDENCY_ERROR"
	ErrCodeCycle       ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrCodeType        ErrorCode = "INVALID_TYPE"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeMissing     ErrorCode = "MISSING_REQUIRED"
	ErrCodeNoVersion   ErrorCode = "NO_MATCHING_VERSION"
	ErrCodeAmbiguous   ErrorCode = "AMBIGUOUS_VERSION"
	ErrCodeUnknownAxis ErrorCode = "UNKNOWN_AXIS"
	ErrCodeEmptyExpand ErrorCode = "EMPTY_WILDCARD_EXPANSION"
	ErrCodeExecution   ErrorCode = "EXECUTION_ERROR"
	ErrCodeTimeout     ErrorCode = "TIMEOUT"
	ErrCodeCancelled   ErrorCode = "CANCELLED"
	ErrCodeInfra       ErrorCode = "INFRASTRUCTURE_ERROR"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// DomainError is a typed error enriched with contextual data, kept free of
// infrastructure dependencies so it can cross package boundaries without
// pulling in logging or I/O concerns.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	return e.Code == domainErr.Code && e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{Code: e.Code, Message: e.Message, Cause: e.Cause, Context: merged}
}

// NewDomainError constructs a DomainError with the supplied code and message.
func NewDomainError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{Code: code, Message: message, Cause: cause, Context: context}
}

func newValidationError(message string, context map[string]interface{}) *DomainError {
	return NewDomainError(ErrCodeValidation, message, nil, context)
}

func newDuplicateError(identifier string) *DomainError {
	return NewDomainError(ErrCodeDuplicate, "duplicate identifier", nil, map[string]interface{}{"id": identifier})
}

func newTypeError(expected, actual string) *DomainError {
	return NewDomainError(ErrCodeType, "invalid type", nil, map[string]interface{}{
		"expected": expected,
		"actual":   actual,
	})
}

func newMissingFieldError(field string) *DomainError {
	return NewDomainError(ErrCodeMissing, "missing required field", nil, map[string]interface{}{"field": field})
}
