package bankerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		err := New(CodeInsufficientFunds, "insufficient funds")
		assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
	})

	t.Run("wrapped chain", func(t *testing.T) {
		inner := Wrap(CodeDeadlockDetected, "deadlock", errors.New("pq: deadlock detected"))
		outer := fmt.Errorf("posting failed: %w", inner)
		assert.Equal(t, CodeDeadlockDetected, CodeOf(outer))
	})

	t.Run("foreign error", func(t *testing.T) {
		assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	})
}

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeCardBlocked, "card is blocked"))
	assert.True(t, errors.Is(err, New(CodeCardBlocked, "")))
	assert.False(t, errors.Is(err, New(CodeCardExpired, "")))
}

func TestFieldOf(t *testing.T) {
	assert.Equal(t, 4, FieldOf(Proto(CodeFieldLengthInvalid, 4, "bad amount")))
	assert.Equal(t, 0, FieldOf(Proto(CodeMtiInvalid, 0, "bad mti")))
	assert.Equal(t, -1, FieldOf(errors.New("not taxonomy")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeDeadlockDetected, "")))
	assert.True(t, Retryable(New(CodeStoreUnavailable, "")))
	assert.False(t, Retryable(New(CodeInsufficientFunds, "")))
	assert.False(t, Retryable(New(CodeTimeout, "")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeStoreUnavailable, "store down", cause)
	assert.ErrorIs(t, err, cause)
}
