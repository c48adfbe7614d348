package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", Wrap(ErrValidation, "bad phone"), IsValidation},
		{"not found", Wrap(ErrNotFound, "no locality"), IsNotFound},
		{"transient", Wrap(ErrTransient, "timeout"), IsTransient},
		{"terminal", Wrap(ErrTerminal, "invalid number"), IsTerminal},
		{"configuration", Wrap(ErrConfiguration, "missing key"), IsConfiguration},
		{"conflict", Wrap(ErrConflict, "session active"), IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(New("unrelated")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestWrappingPreservesSentinel(t *testing.T) {
	err := NewValidationError("phone %q is not plausible", "abc")
	err = Wrap(err, "ingest candidate")

	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "abc")
}

func TestRetryAfterHint(t *testing.T) {
	base := Wrap(ErrTransient, "rate limited")
	err := WithRetryAfter(base, 7*time.Second)

	// Hint survives further wrapping and keeps the transient classification.
	err = Wrap(err, "dial attempt 1")
	require.True(t, IsTransient(err))

	after, ok := RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, after)
}

func TestRetryAfterAbsent(t *testing.T) {
	_, ok := RetryAfter(Wrap(ErrTransient, "timeout"))
	assert.False(t, ok)

	_, ok = RetryAfter(nil)
	assert.False(t, ok)
}

func TestWithRetryAfterNil(t *testing.T) {
	assert.NoError(t, WithRetryAfter(nil, time.Second))
}
