package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeUpstreamFailure, cause, "birdeye request failed")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUpstreamFailure, CodeOf(fmt.Errorf("outer: %w", err)))
	assert.Contains(t, err.Error(), "UPSTREAM_FAILURE")
	assert.True(t, RetryableError(err))
	assert.False(t, ShouldAlert(err))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeModelOutputInvalid, "first")
	b := New(CodeModelOutputInvalid, "second")
	assert.True(t, stdErrors.Is(a, b))
	assert.False(t, stdErrors.Is(a, New(CodeActionFailed, "")))
}

func TestDefaultsAndUnknownFallback(t *testing.T) {
	err := New(CodeStorageFailure, "", WithMetadata("table", "messages"))
	assert.Equal(t, "storage failure", err.Message())
	assert.True(t, err.ShouldAlert())
	assert.Equal(t, SeverityCritical, SeverityOf(fmt.Errorf("ctx: %w", err)))
	assert.Equal(t, map[string]string{"table": "messages"}, err.Metadata())

	assert.Equal(t, CodeUnknown, CodeOf(stdErrors.New("plain")))
	assert.False(t, RetryableError(stdErrors.New("plain")))
	assert.Equal(t, AttributesOf(CodeUnknown), AttributesOf(Code("NOT_REGISTERED")))

	var nilErr *Error
	assert.False(t, nilErr.ShouldAlert())
	assert.Equal(t, CodeUnknown, nilErr.Code())
}
