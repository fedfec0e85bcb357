// Package poll provides a bounded polling helper for asserting eventual
// convergence of asynchronous state, e.g. server-side session teardown that
// lags the client-side close call.
package poll

import (
	"context"
	"time"
)

// DefaultInterval is the pause between condition evaluations used by WaitFor.
const DefaultInterval = 25 * time.Millisecond

// WaitFor repeatedly evaluates cond until it returns true or timeout
// elapses, pausing DefaultInterval between evaluations. Returns the last
// result: true on success, false when the timeout was exhausted or ctx was
// canceled. cond is evaluated at least once, even with a zero timeout.
// Timeout exhaustion is not an error; callers decide what false means.
func WaitFor(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) bool {
	return WaitForInterval(ctx, timeout, DefaultInterval, cond)
}

// WaitForInterval is WaitFor with a caller-chosen evaluation interval.
// The final pause is clamped to the remaining time so the loop terminates
// promptly once the deadline passes.
func WaitForInterval(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond(ctx) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		pause := interval
		if pause > remaining {
			pause = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pause):
		}
	}
}
