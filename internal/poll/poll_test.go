package poll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor_immediateTrue(t *testing.T) {
	calls := 0
	ok := WaitFor(context.Background(), 100*time.Millisecond, func(context.Context) bool {
		calls++
		return true
	})
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestWaitFor_eventuallyTrue(t *testing.T) {
	start := time.Now()
	ok := WaitForInterval(context.Background(), time.Second, 5*time.Millisecond, func(context.Context) bool {
		return time.Since(start) > 30*time.Millisecond
	})
	assert.True(t, ok)
}

func TestWaitFor_timeout(t *testing.T) {
	calls := 0
	start := time.Now()
	ok := WaitForInterval(context.Background(), 60*time.Millisecond, 10*time.Millisecond, func(context.Context) bool {
		calls++
		return false
	})
	assert.False(t, ok)
	assert.GreaterOrEqual(t, calls, 2)
	// Terminates close to the deadline, never hangs.
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitFor_zeroTimeoutEvaluatesOnce(t *testing.T) {
	calls := 0
	ok := WaitFor(context.Background(), 0, func(context.Context) bool {
		calls++
		return false
	})
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestWaitFor_zeroTimeoutTrue(t *testing.T) {
	ok := WaitFor(context.Background(), 0, func(context.Context) bool { return true })
	assert.True(t, ok)
}

func TestWaitFor_contextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := WaitFor(ctx, time.Second, func(context.Context) bool { return false })
	assert.False(t, ok)
}
