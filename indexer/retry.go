package indexer

import (
	"context"
	"log/slog"
	"time"
)

// Backoff describes a retry schedule: Retries extra attempts, the first after
// MinDelay and each later one Factor times longer.
type Backoff struct {
	Retries  int
	MinDelay time.Duration
	Factor   float64
}

// Delays returns the wait before each retry.
func (b Backoff) Delays() []time.Duration {
	delays := make([]time.Duration, 0, b.Retries)
	d := b.MinDelay
	for range b.Retries {
		delays = append(delays, d)
		if b.Factor > 1 {
			d = time.Duration(float64(d) * b.Factor)
		}
	}
	return delays
}

// Retry runs fn until it succeeds, the schedule is exhausted or ctx is done.
// The last error is returned.
func Retry(ctx context.Context, b Backoff, what string, fn func(context.Context) error) error {
	err := fn(ctx)
	for attempt, delay := range b.Delays() {
		if err == nil {
			return nil
		}
		slog.Info("retrying", "target", what, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = fn(ctx)
	}
	return err
}
