package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastPolicy(), func() error {
		attempts++
		return errors.New("always failing")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastPolicy(), func() error {
		attempts++
		return NewPermanentError(errors.New("bad configuration"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastPolicy(), func() error {
		attempts++
		return errors.New("transient")
	})
	assert.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}
