package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryTypeAndRetryability(t *testing.T) {
	cause := fmt.Errorf("connection reset")

	tests := []struct {
		name      string
		err       *Error
		wantType  ErrorType
		retryable bool
	}{
		{"network", Network("u", cause), ErrorTypeNetwork, true},
		{"server error", ServerError("u", 502), ErrorTypeServerError, true},
		{"auth lost", AuthLost("u", 403), ErrorTypeAuthLost, true},
		{"auth failed", AuthFailed("u", 401), ErrorTypeAuthFailed, false},
		{"not found", NotFound("u", 404), ErrorTypeNotFound, false},
		{"empty resource", EmptyResource("u"), ErrorTypeEmptyResource, false},
		{"invalid range", InvalidRange("u", 416), ErrorTypeInvalidRange, false},
		{"retries exhausted", RetriesExhausted("u", 3, cause), ErrorTypeRetriesExhausted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, "u", tt.err.URL)
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
		})
	}
}

func TestIsTypeWalksWrappedChain(t *testing.T) {
	last := ServerError("https://example.com/v.mp4", 503)
	err := fmt.Errorf("item aborted: %w", RetriesExhausted(last.URL, 20, last))

	assert.True(t, IsType(err, ErrorTypeRetriesExhausted))
	assert.True(t, IsType(err, ErrorTypeServerError))
	assert.False(t, IsType(err, ErrorTypeNetwork))
	assert.Equal(t, ErrorTypeRetriesExhausted, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := InvalidRange("https://example.com/v.mp4", 416)
	assert.Equal(t, "invalid_range error (code 416): requested range not satisfiable [https://example.com/v.mp4]", err.Error())

	wrapped := Network("https://example.com", fmt.Errorf("timeout"))
	assert.Contains(t, wrapped.Error(), ": timeout")
	assert.ErrorIs(t, wrapped, wrapped.Err)
}
