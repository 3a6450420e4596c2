package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeAuth, "session expired", 401)
	assert.Equal(t, "auth error (code 401): session expired", err.Error())

	err = New(ErrorTypeCorruptStore, "unexpected end of JSON input", 0)
	assert.Equal(t, "corrupt_store error: unexpected end of JSON input", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.False(t, IsRetryable(ErrorTypeCorruptStore))
	assert.False(t, IsRetryable(ErrorTypeUnknown))
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{599, true},
		{401, false},
		{403, false},
		{404, false},
		{200, false},
		{400, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableStatusCode(tt.code), "status %d", tt.code)
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeAuth, TypeOf(New(ErrorTypeAuth, "nope", 403)))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain error")))

	// Wrapped classified errors are still recognized
	wrapped := fmt.Errorf("page 2: %w", New(ErrorTypeServerError, "bad gateway", 502))
	assert.Equal(t, ErrorTypeServerError, TypeOf(wrapped))
	assert.False(t, IsAuth(wrapped))
	assert.True(t, IsAuth(fmt.Errorf("listing: %w", New(ErrorTypeAuth, "expired", 401))))
}
