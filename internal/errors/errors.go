package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an attune error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrTooLarge       ErrorCode = "TOO_LARGE"       // 413
	ErrDecryptFailed  ErrorCode = "DECRYPT_FAILED"  // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// AttuneError represents a structured error with code, status, and details.
type AttuneError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *AttuneError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AttuneError {
	return &AttuneError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing check-in or mood entry.
func NewNotFound(identifier string) *AttuneError {
	return &AttuneError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *AttuneError {
	return &AttuneError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error, e.g. an id collision on import.
func NewConflict(msg string) *AttuneError {
	return &AttuneError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewTooLarge creates a 413 error when a text field exceeds the size limit.
func NewTooLarge(field string, max, actual int) *AttuneError {
	return &AttuneError{
		Code:    ErrTooLarge,
		Status:  413,
		Message: fmt.Sprintf("%s exceeds maximum size: %d chars (max %d)", field, actual, max),
		Details: map[string]any{"field": field, "max_chars": max, "actual_chars": actual},
	}
}

// NewDecryptFailed creates a 422 error when an encrypted export cannot be opened.
func NewDecryptFailed() *AttuneError {
	return &AttuneError{
		Code:    ErrDecryptFailed,
		Status:  422,
		Message: "could not decrypt export (wrong passphrase or corrupted file)",
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its context.
func NewCancelled(op string) *AttuneError {
	return &AttuneError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AttuneError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AttuneError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) an AttuneError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AttuneError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}
