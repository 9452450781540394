package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBeaconError_Error(t *testing.T) {
	err := New(ErrCategoryCapacity, CodeBufferFull, "buffer full")
	expected := "[CAPACITY:BUFFER_FULL] buffer full"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBeaconError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryDelivery, CodeTransportFailed, "post batch", cause)
	expected := "[DELIVERY:TRANSPORT_FAILED] post batch: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBeaconError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryKeyExchange, CodeKeyFetchFailed, "fetch", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBeaconError_Is(t *testing.T) {
	err1 := New(ErrCategoryDelivery, CodeBadStatus, "first")
	err2 := New(ErrCategoryDelivery, CodeBadStatus, "second")
	err3 := New(ErrCategoryDelivery, CodeTransportFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", err1), err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryDelivery, CodeTransportFailed, true},
		{ErrCategoryDelivery, CodeBadStatus, false},
		{ErrCategoryKeyExchange, CodeKeyFetchFailed, true},
		{ErrCategoryKeyExchange, CodeKeyRejected, false},
		{ErrCategoryAcquisition, CodeFingerprintFailed, true},
		{ErrCategoryAcquisition, CodeMaxRetries, false},
		{ErrCategoryValidation, CodeInvalidUserID, false},
		{ErrCategoryCapacity, CodeBufferFull, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("context: %w", NewValidationError(CodeInvalidUserID, "bad id"))
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeInvalidUserID {
		t.Errorf("got %q, want %q", GetCode(err), CodeInvalidUserID)
	}
	if !IsValidation(err) {
		t.Error("IsValidation should be true")
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain")) != "" {
		t.Error("non-BeaconError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewCapacityError(CodeBufferFull, "full")
	detailed := err.WithDetails(map[string]interface{}{"max": 2000})

	if detailed.Details["max"] != 2000 {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	if d := NewDeliveryError(CodeBadStatus, "503", cause); d.Category != ErrCategoryDelivery || !errors.Is(d, cause) {
		t.Error("NewDeliveryError mismatch")
	}
	if k := NewKeyExchangeError(CodeKeyRejected, "status", nil); k.Category != ErrCategoryKeyExchange {
		t.Error("NewKeyExchangeError mismatch")
	}
	if a := NewAcquisitionError(CodeMaxRetries, "gave up", cause); a.Category != ErrCategoryAcquisition {
		t.Error("NewAcquisitionError mismatch")
	}
	if s := NewStorageError(CodeWriteFailed, "put", cause); s.Category != ErrCategoryStorage {
		t.Error("NewStorageError mismatch")
	}
	if i := NewInternalError("unexpected", cause); i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
