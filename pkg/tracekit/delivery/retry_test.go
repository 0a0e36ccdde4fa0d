package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfig_SleepRespectsCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, cfg.sleep(ctx, 1))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryConfig_SleepGrowsWithAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	// Attempt 3 would be 4ms (1ms * 2^2), capped at MaxBackoff.
	start := time.Now()
	assert.True(t, cfg.sleep(context.Background(), 3))
	assert.GreaterOrEqual(t, time.Since(start), 4*time.Millisecond)
}

func TestRetryConfig_ZeroBackoffDoesNotWait(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2}

	start := time.Now()
	assert.True(t, cfg.sleep(context.Background(), 1))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestJittered_WithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := jittered(base, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestJittered_NoJitter(t *testing.T) {
	assert.Equal(t, time.Second, jittered(time.Second, 0))
}

func TestNoRetry_SingleAttempt(t *testing.T) {
	assert.Equal(t, 1, NoRetry.MaxAttempts)
}
