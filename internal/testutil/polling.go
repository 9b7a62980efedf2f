// Package testutil holds helpers for tests that wait on the worker pool.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Poll checks condition every interval until it holds, timeout passes, or
// ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout time.Duration, interval time.Duration) error {
	start := time.Now()
	for {
		if condition() {
			return nil
		}

		if time.Since(start) >= timeout {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WaitForState polls getter until predicate accepts its value.
//
// Example usage:
//
//	n, err := WaitForState(ctx, sink.Len,
//		func(n int) bool { return n >= 3 },
//		ResultTimeout,
//		PollInterval)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout time.Duration, interval time.Duration) (T, error) {
	start := time.Now()
	for {
		state := getter()

		if predicate(state) {
			return state, nil
		}

		if time.Since(start) >= timeout {
			var zero T
			return zero, fmt.Errorf("timeout waiting for target state (type %T, threshold: %v)", *new(T), timeout)
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// TickUntil calls tick, the coordinator step of a pool, every PollInterval
// until done reports true. It is the test stand-in for a simulation loop.
func TickUntil(ctx context.Context, tick func(), done func() bool, timeout time.Duration) error {
	return Poll(ctx, func() bool {
		tick()
		return done()
	}, timeout, PollInterval)
}
