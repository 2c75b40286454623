package domain

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "nil error has no kind",
			err:      nil,
			expected: ErrorKindNone,
		},
		{
			name:     "classified error keeps its kind",
			err:      NewActivityError(ErrorKindPayment, "card declined"),
			expected: ErrorKindPayment,
		},
		{
			name:     "classification survives wrapping",
			err:      errors.Wrap(NewActivityError(ErrorKindPreconditionFailed, "no seats"), "failed to reserve"),
			expected: ErrorKindPreconditionFailed,
		},
		{
			name:     "context deadline is an activity timeout",
			err:      context.DeadlineExceeded,
			expected: ErrorKindTimeout,
		},
		{
			name:     "wrapped context deadline is an activity timeout",
			err:      errors.Wrap(context.DeadlineExceeded, "charge"),
			expected: ErrorKindTimeout,
		},
		{
			name:     "unclassified errors default to transient",
			err:      errors.New("connection reset"),
			expected: ErrorKindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestActivityErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapActivityError(ErrorKindTransient, cause, "failed")

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "transient_infrastructure")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrNoSeatsAvailableIsPrecondition(t *testing.T) {
	assert.Equal(t, ErrorKindPreconditionFailed, KindOf(ErrNoSeatsAvailable))
}
