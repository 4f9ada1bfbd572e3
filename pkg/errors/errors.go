package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Path errors
	ErrPathUnsafe ErrorCode = "PATH_UNSAFE"

	// Filesystem errors
	ErrIoFailure ErrorCode = "IO_FAILURE"

	// Store errors
	ErrStoreOpen   ErrorCode = "STORE_OPEN"
	ErrBlobMissing ErrorCode = "BLOB_MISSING"

	// Manifest errors
	ErrNotInitialized ErrorCode = "NOT_INITIALIZED"
	ErrAlreadyTracked ErrorCode = "ALREADY_TRACKED"
	ErrNotTracked     ErrorCode = "NOT_TRACKED"

	// Remote errors
	ErrRemoteUnreachable ErrorCode = "REMOTE_UNREACHABLE"
	ErrRemoteCommand     ErrorCode = "REMOTE_COMMAND"
	ErrSSHMissing        ErrorCode = "SSH_MISSING"

	// Profile errors
	ErrProfileExists   ErrorCode = "PROFILE_EXISTS"
	ErrProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	ErrProfileName     ErrorCode = "PROFILE_NAME"
)

// DotkeepError represents a structured error with code and details
type DotkeepError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DotkeepError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DotkeepError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *DotkeepError) Is(target error) bool {
	var targetErr *DotkeepError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DotkeepError with the given code and message
func New(code ErrorCode, message string) *DotkeepError {
	return &DotkeepError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DotkeepError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DotkeepError {
	return &DotkeepError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a DotkeepError
func Wrap(err error, code ErrorCode, message string) *DotkeepError {
	if err == nil {
		return nil
	}
	return &DotkeepError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DotkeepError {
	if err == nil {
		return nil
	}
	return &DotkeepError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *DotkeepError) WithDetail(key string, value interface{}) *DotkeepError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var dkErr *DotkeepError
	if errors.As(err, &dkErr) {
		return dkErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a DotkeepError
func GetErrorCode(err error) ErrorCode {
	var dkErr *DotkeepError
	if errors.As(err, &dkErr) {
		return dkErr.Code
	}
	return ErrUnknown
}
