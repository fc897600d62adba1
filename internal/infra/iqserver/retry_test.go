package iqserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 6, InitDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, backoffDelay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(cfg, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(cfg, 2))
	assert.Equal(t, 800*time.Millisecond, backoffDelay(cfg, 3))
	assert.Equal(t, time.Second, backoffDelay(cfg, 4))
	assert.Equal(t, time.Second, backoffDelay(cfg, 10))
}

func TestSleepStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
