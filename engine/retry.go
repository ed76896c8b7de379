package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/errs"
)

// computeBackoff implements the retry delay formula:
//
//	delay = min(initialInterval * backoffCoefficient^(attempt-1), maximumInterval)
//
// attempt is 1-based (the attempt that just failed). Jitter of up to one
// initial interval is added so synchronized failures don't retry in
// lockstep.
func computeBackoff(attempt int, rp component.RetryPolicy, rng *rand.Rand) time.Duration {
	initial := rp.InitialIntervalSeconds
	if initial <= 0 {
		initial = 1
	}
	coeff := rp.BackoffCoefficient
	if coeff <= 0 {
		coeff = 2
	}
	delaySeconds := initial * math.Pow(coeff, float64(attempt-1))
	if rp.MaximumIntervalSeconds > 0 && delaySeconds > rp.MaximumIntervalSeconds {
		delaySeconds = rp.MaximumIntervalSeconds
	}

	var jitter float64
	if rng != nil {
		jitter = rng.Float64() * initial
	} else {
		jitter = rand.Float64() * initial // #nosec G404 -- jitter for retry timing, not security-sensitive
	}
	return time.Duration((delaySeconds + jitter) * float64(time.Second))
}

// shouldRetry decides whether a failed attempt should be retried under rp,
// consulting both the attempt budget and the error's kind-based
// retryability (honoring rp.NonRetryableErrorKinds).
func shouldRetry(attempt int, rp component.RetryPolicy, err *errs.NodeError) bool {
	if attempt >= rp.MaxAttempts {
		return false
	}
	return err.Retryable(rp.NonRetryableErrorKinds)
}
