package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := InvalidParameter("window length %d must be < %d", 10, 10)
	wrapped := Wrap(inner, "estimating connectivity")

	assert.Equal(t, CodeInvalidParameter, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, CodeInvalidParameter))
	assert.Contains(t, wrapped.Error(), "window length 10 must be < 10")
	assert.True(t, stderrors.Is(wrapped, inner))
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("boom"), "subject %s", "s01")

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "subject s01: boom", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "noop"))
	assert.Nil(t, Wrapf(nil, "noop %d", 1))
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidShape("empty matrix"))

	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeInvalidShape, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
	assert.False(t, HasCode(nil, CodeInvalidShape))
}
