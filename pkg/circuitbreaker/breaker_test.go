package circuitbreaker

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoPassesResultsThrough(t *testing.T) {
	b := New("test-pass")

	result, err := b.Do(context.Background(), func() (interface{}, error) {
		return "indexed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "indexed", result)
}

func TestDoTripsAfterRepeatedFailures(t *testing.T) {
	b := New("test-trip")
	failing := func() (interface{}, error) {
		return nil, errors.New("bulk write failed")
	}

	for i := 0; i < 3; i++ {
		_, err := b.Do(context.Background(), failing)
		assert.Error(t, err)
	}

	// The breaker is open now; calls are rejected without invoking fn.
	invoked := false
	_, err := b.Do(context.Background(), func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, invoked)
}

func TestDoShortCircuitsOnCancelledContext(t *testing.T) {
	b := New("test-cancel")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoked := false
	_, err := b.Do(ctx, func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoked)
}
