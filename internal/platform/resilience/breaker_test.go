package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/config"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewBreaker[int]("media", config.BreakerConfig{MaxFailures: 2, OpenDuration: time.Minute}, nil)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	called := false
	_, err := breaker.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
	assert.Equal(t, "open", breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := NewBreaker[int]("notify", config.BreakerConfig{MaxFailures: 1, OpenDuration: time.Minute}, nil)

	_, err := breaker.Execute(func() (int, error) { return 0, context.Canceled })
	require.ErrorIs(t, err, context.Canceled)

	value, err := breaker.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, "closed", breaker.State())
}
