package errors

import "fmt"

// ErrorCode represents a clipkeep error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileTooLarge   ErrorCode = "FILE_TOO_LARGE"  // 413
	ErrStoreFailed    ErrorCode = "STORE_FAILED"    // 500
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(id string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileTooLarge creates a 413 error for clipboard files over the read limit.
func NewFileTooLarge(name string, max, actual int64) *ClipError {
	return &ClipError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file %q exceeds maximum size: %d bytes (max %d)", name, actual, max),
		Details: map[string]any{"file_name": name, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewStoreFailed creates a 500 error for a failed persistence write.
// The operation kind and record id are carried in Details so the failure can
// be diagnosed from the log line alone.
func NewStoreFailed(op, id string, err error) *ClipError {
	msg := "store write failed"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrStoreFailed,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op, "id": id},
	}
}

// NewCancelled creates a 499 error for an operation interrupted by context
// cancellation.
func NewCancelled(op string) *ClipError {
	return &ClipError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("operation cancelled: %s", op),
		Details: map[string]any{"op": op},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*ClipError); ok {
		return cErr.Code == code
	}
	return false
}
