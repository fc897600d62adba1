package iqserver

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls the retry budget and the backoff curve applied to
// transient upstream failures.
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	InitDelay   time.Duration // base delay before the first retry
	MaxDelay    time.Duration // cap on any single delay
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		InitDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// backoffDelay computes the delay for a backoff step (0-indexed):
// InitDelay * 2^step, capped at MaxDelay.
func backoffDelay(cfg RetryConfig, step int) time.Duration {
	d := cfg.InitDelay * time.Duration(math.Pow(2, float64(step)))
	if d > cfg.MaxDelay || d <= 0 {
		d = cfg.MaxDelay
	}
	return d
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
