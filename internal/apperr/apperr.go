// Package apperr provides error code definitions shared across the core.
package apperr

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error for callers that need to branch on the
// failure class rather than the message.
type ErrorCode string

const (
	// ErrInternal covers unexpected failures with no better class.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	// ErrNotFound signals a document that does not exist remotely.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrValidation signals a required field missing or malformed. The
	// write was rejected before any I/O.
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	// ErrConnectivity signals the remote store is unreachable. Retryable;
	// submit paths respond by queuing, never by hard-failing.
	ErrConnectivity ErrorCode = "CONNECTIVITY_ERROR"
	// ErrRemoteRejected signals the remote store was reachable but refused
	// the write (authorization, conflict, quota). Never queued.
	ErrRemoteRejected ErrorCode = "REMOTE_REJECTED"
	// ErrLocalStore signals the durable store failed. Fatal to the
	// enclosing operation: without durable queuing the offline guarantee
	// cannot be honored.
	ErrLocalStore ErrorCode = "LOCAL_STORE_ERROR"
	// ErrDrainPartialFailure signals one or more queued mutations landed
	// on the failed side-list during a drain.
	ErrDrainPartialFailure ErrorCode = "DRAIN_PARTIAL_FAILURE"
)

// AppError carries an error code with a message and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is reports whether err, or any error in its chain, carries the code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrInternal when err carries no code.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Retryable reports whether the error class is worth retrying against the
// remote store. Only connectivity failures qualify; rejections and
// validation errors are terminal.
func Retryable(err error) bool {
	return Is(err, ErrConnectivity)
}
