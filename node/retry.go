package node

import (
	"math/rand"
	"time"
)

// RetryPolicy describes exponential backoff with jitter, adapted from the
// engine's node-level retry policy. Executor does not read it: node retry
// attempts run back to back.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ComputeBackoff returns the delay before retry attempt `attempt` (0-based:
// 0 is the first retry after the initial failed attempt).
//
// delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
//
// The exponential term backs off faster on repeated failures; jitter
// spreads concurrent retries so they don't all land on the same server
// at once. The orchestrator's remote dispatch is its caller.
func ComputeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry timing, not security sensitive
		}
	}
	return delay + jitter
}
