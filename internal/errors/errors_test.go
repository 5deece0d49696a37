package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServerError
		expected string
	}{
		{
			name:     "code and message",
			err:      NewClientError(ErrCodeMethodNotAllowed, "POST method not allowed"),
			expected: "[ERR_METHOD_NOT_ALLOWED] POST method not allowed",
		},
		{
			name:     "with path",
			err:      ErrFileNotFound("missing.txt"),
			expected: "[ERR_FILE_NOT_FOUND] path:missing.txt file not found",
		},
		{
			name:     "with cause",
			err:      NewHandlerError(ErrCodeInternalError, "open failed", fmt.Errorf("permission denied")),
			expected: "[ERR_INTERNAL] open failed: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestServerErrorIsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewUpgradeError("handshake rejected", cause)
	wrapped := fmt.Errorf("reload: %w", err)

	assert.True(t, errors.Is(wrapped, &ServerError{Type: ErrorTypeUpgrade, Code: ErrCodeUpgradeFailed}))
	assert.False(t, errors.Is(wrapped, &ServerError{Type: ErrorTypeClient, Code: ErrCodeUpgradeFailed}))
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsUpgradeError(wrapped))
	assert.False(t, IsClientError(wrapped))
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsClientError(ErrFileNotFound("x")))
	assert.True(t, IsClientError(ErrMethodNotAllowed("PUT")))
	assert.True(t, IsConfigError(ErrRootMissing("/nope", nil)))
	assert.False(t, IsConfigError(fmt.Errorf("plain")))
	assert.False(t, IsClientError(nil))
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeConfigInvalid, "bad port").
		WithContext("port", 70000).
		WithContext("host", "localhost")

	require.Len(t, err.Context, 2)
	assert.Equal(t, 70000, err.Context["port"])
}

type recordingLogger struct {
	warns  []string
	errors []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, ErrFileNotFound("a"))
	handler.Handle(ctx, NewHandlerError(ErrCodeInternalError, "read", nil))
	handler.Handle(ctx, NewUpgradeError("bad key", nil))
	handler.Handle(ctx, fmt.Errorf("generic"))

	assert.Equal(t, []string{"Client error"}, logger.warns)
	assert.Equal(t, []string{"Server error", "WebSocket handshake failed", "Unhandled error occurred"}, logger.errors)
}

func TestHandlerErrorCapturesCallerStack(t *testing.T) {
	err := NewHandlerError(ErrCodeInternalError, "read", nil)

	require.NotEmpty(t, err.Stack)
	assert.Contains(t, string(err.Stack), "TestHandlerErrorCapturesCallerStack")

	recovered := []byte("goroutine 7 [running]:\nmain.explode()")
	assert.Equal(t, recovered, err.WithStack(recovered).Stack)

	assert.Empty(t, ErrFileNotFound("a").Stack)
}

func TestErrBindFailed(t *testing.T) {
	cause := fmt.Errorf("address already in use")
	err := ErrBindFailed("localhost:8000", cause)

	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[ERR_BIND_FAILED] cannot listen on localhost:8000: address already in use", err.Error())
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("charset required")

	assert.Equal(t, ErrorTypePrecondition, err.Type)
	assert.False(t, IsClientError(err))
	assert.False(t, IsConfigError(err))
}
