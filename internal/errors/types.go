// Package errors defines the structured error taxonomy used across hrserve.
//
// Every failure the server can observe falls into one of five types:
//
//   - client: a bad method or a missing file, answered with 404/405
//   - upgrade: a rejected WebSocket handshake, answered with 500
//   - handler: a fault while building a file response, answered with 500
//   - config: invalid bind parameters or a missing root, fatal at startup
//   - precondition: an ordering bug inside the server, raised as a panic
package errors

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeClient       ErrorType = "client"
	ErrorTypeUpgrade      ErrorType = "upgrade"
	ErrorTypeHandler      ErrorType = "handler"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypePrecondition ErrorType = "precondition"
)

// ServerError is a structured error type with context.
type ServerError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Path    string
	Context map[string]interface{}
	// Stack is the goroutine stack where the fault was raised, when known.
	Stack []byte
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, "path:"+e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ServerError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel values can be compared with errors.Is.
func (e *ServerError) Is(target error) bool {
	var t *ServerError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ServerError) WithContext(key string, value interface{}) *ServerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the request or file path the error relates to.
func (e *ServerError) WithPath(path string) *ServerError {
	e.Path = path

	return e
}

// WithStack replaces the captured stack, for faults recovered from a panic.
func (e *ServerError) WithStack(stack []byte) *ServerError {
	e.Stack = stack

	return e
}

// NewClientError creates an error caused by the requester.
func NewClientError(code, message string) *ServerError {
	return &ServerError{
		Type:    ErrorTypeClient,
		Code:    code,
		Message: message,
	}
}

// NewUpgradeError creates a WebSocket handshake failure.
func NewUpgradeError(message string, cause error) *ServerError {
	return &ServerError{
		Type:    ErrorTypeUpgrade,
		Code:    ErrCodeUpgradeFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewHandlerError creates a fault raised while building a response. The
// caller's stack is captured for the error page.
func NewHandlerError(code, message string, cause error) *ServerError {
	return &ServerError{
		Type:    ErrorTypeHandler,
		Code:    code,
		Message: message,
		Cause:   cause,
		Stack:   debug.Stack(),
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ServerError {
	return &ServerError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewPreconditionError creates a programmer error. Callers panic with it.
func NewPreconditionError(message string) *ServerError {
	return &ServerError{
		Type:    ErrorTypePrecondition,
		Code:    ErrCodePrecondition,
		Message: message,
	}
}

// IsClientError reports whether err was caused by the requester.
func IsClientError(err error) bool {
	return hasType(err, ErrorTypeClient)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsUpgradeError reports whether err is a failed WebSocket handshake.
func IsUpgradeError(err error) bool {
	return hasType(err, ErrorTypeUpgrade)
}

func hasType(err error, t ErrorType) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its type. Client errors are expected
// traffic and only warn; everything else is logged as an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *ServerError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	switch {
	case IsClientError(se):
		h.logger.Warn(ctx, err, "Client error",
			"type", se.Type,
			"code", se.Code,
			"path", se.Path)
	case IsUpgradeError(se):
		h.logger.Error(ctx, err, "WebSocket handshake failed",
			"code", se.Code,
			"path", se.Path)
	default:
		h.logger.Error(ctx, err, "Server error",
			"type", se.Type,
			"code", se.Code,
			"path", se.Path)
	}
}

// Common error codes.
const (
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
	ErrCodeUpgradeFailed    = "ERR_UPGRADE_FAILED"
	ErrCodeUnavailable      = "ERR_UNAVAILABLE"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodePanic            = "ERR_PANIC"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeRootMissing      = "ERR_ROOT_MISSING"
	ErrCodeBindFailed       = "ERR_BIND_FAILED"
	ErrCodePrecondition     = "ERR_PRECONDITION"
)

// ErrFileNotFound creates the error returned for a path with no matching file.
func ErrFileNotFound(path string) *ServerError {
	return NewClientError(ErrCodeFileNotFound, "file not found").WithPath(path)
}

// ErrMethodNotAllowed creates the error returned for non-GET requests.
func ErrMethodNotAllowed(method string) *ServerError {
	return NewClientError(ErrCodeMethodNotAllowed, method+" method not allowed")
}

// ErrRootMissing creates the error returned when the served root is unusable.
func ErrRootMissing(root string, cause error) *ServerError {
	err := NewConfigError(ErrCodeRootMissing, fmt.Sprintf("directory %s doesn't exist", root))
	err.Cause = cause

	return err
}

// ErrBindFailed creates the error returned when the listener cannot be opened.
func ErrBindFailed(addr string, cause error) *ServerError {
	err := NewConfigError(ErrCodeBindFailed, fmt.Sprintf("cannot listen on %s", addr))
	err.Cause = cause

	return err
}
