// Package errors provides the structured error type used across the telemetry pipeline.
// Every error carries a category, a code, a message and a retryable flag. Only
// validation errors ever reach the host application; the rest are soft failures
// that components log (and, where useful, record as LOG events).
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the part of the pipeline that failed.
type ErrorCategory string

const (
	ErrCategoryCapacity    ErrorCategory = "CAPACITY"
	ErrCategoryDelivery    ErrorCategory = "DELIVERY"
	ErrCategoryKeyExchange ErrorCategory = "KEY_EXCHANGE"
	ErrCategoryAcquisition ErrorCategory = "ACQUISITION"
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryStorage     ErrorCategory = "STORAGE"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Capacity codes
	CodeBufferFull = "BUFFER_FULL"
	CodeLowMemory  = "LOW_MEMORY"

	// Delivery codes
	CodeTransportFailed = "TRANSPORT_FAILED"
	CodeBadStatus       = "BAD_STATUS"
	CodeEncodeFailed    = "ENCODE_FAILED"

	// Key exchange codes
	CodeKeyFetchFailed = "KEY_FETCH_FAILED"
	CodeKeyRejected    = "KEY_REJECTED"

	// Acquisition codes
	CodeFingerprintFailed = "FINGERPRINT_FAILED"
	CodeMaxRetries        = "MAX_RETRIES"

	// Validation codes
	CodeInvalidUserID = "INVALID_USER_ID"
	CodeInvalidEvent  = "INVALID_EVENT"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Storage codes
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"

	// Internal codes
	CodeNotStarted     = "NOT_STARTED"
	CodeAlreadyStarted = "ALREADY_STARTED"
	CodeUnexpected     = "UNEXPECTED"
)

// BeaconError is the structured error type used throughout the pipeline.
type BeaconError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *BeaconError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BeaconError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BeaconError) Is(target error) bool {
	var t *BeaconError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BeaconError.
func New(category ErrorCategory, code, message string) *BeaconError {
	return &BeaconError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new BeaconError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BeaconError {
	return &BeaconError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BeaconError) WithDetails(details map[string]interface{}) *BeaconError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var be *BeaconError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BeaconError.
func GetCategory(err error) ErrorCategory {
	var be *BeaconError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BeaconError.
func GetCode(err error) string {
	var be *BeaconError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsValidation reports whether err must be surfaced to the caller.
func IsValidation(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

// isRetryable marks the transient failures: a retry of the same call may succeed.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryDelivery && code == CodeTransportFailed:
		return true
	case category == ErrCategoryKeyExchange && code == CodeKeyFetchFailed:
		return true
	case category == ErrCategoryAcquisition && code == CodeFingerprintFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *BeaconError {
	return New(ErrCategoryValidation, code, message)
}

func NewCapacityError(code, message string) *BeaconError {
	return New(ErrCategoryCapacity, code, message)
}

func NewDeliveryError(code, message string, cause error) *BeaconError {
	return Wrap(ErrCategoryDelivery, code, message, cause)
}

func NewKeyExchangeError(code, message string, cause error) *BeaconError {
	return Wrap(ErrCategoryKeyExchange, code, message, cause)
}

func NewAcquisitionError(code, message string, cause error) *BeaconError {
	return Wrap(ErrCategoryAcquisition, code, message, cause)
}

func NewStorageError(code, message string, cause error) *BeaconError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *BeaconError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
