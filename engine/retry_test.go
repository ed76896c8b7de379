package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/errs"
)

func TestComputeBackoff_ExponentialGrowthCappedAtMax(t *testing.T) {
	rp := component.RetryPolicy{
		InitialIntervalSeconds: 2,
		MaximumIntervalSeconds: 10,
		BackoffCoefficient:     2,
	}
	rng := rand.New(rand.NewSource(1))

	d1 := computeBackoff(1, rp, rng)
	d2 := computeBackoff(2, rp, rng)
	d3 := computeBackoff(3, rp, rng)
	d4 := computeBackoff(4, rp, rng)

	if d1 < 2*time.Second || d1 >= 4*time.Second {
		t.Errorf("attempt 1 delay %v out of expected [2s,4s)", d1)
	}
	if d2 < 4*time.Second || d2 >= 6*time.Second {
		t.Errorf("attempt 2 delay %v out of expected [4s,6s)", d2)
	}
	// attempt 3 is 8s, still under the 10s maximum, plus jitter up to initial (2s)
	if d3 < 8*time.Second || d3 >= 10*time.Second {
		t.Errorf("attempt 3 delay %v out of expected [8s,10s)", d3)
	}
	// attempt 4 would be 16s uncapped but maximum is 10s, plus jitter up to initial (2s)
	if d4 < 10*time.Second || d4 >= 12*time.Second {
		t.Errorf("attempt 4 delay %v out of expected [10s,12s) (capped)", d4)
	}
}

func TestShouldRetry_RespectsAttemptBudget(t *testing.T) {
	rp := component.RetryPolicy{MaxAttempts: 3}
	err := &errs.NodeError{Kind: errs.Transient}

	if !shouldRetry(1, rp, err) {
		t.Error("expected retry on attempt 1 of 3")
	}
	if !shouldRetry(2, rp, err) {
		t.Error("expected retry on attempt 2 of 3")
	}
	if shouldRetry(3, rp, err) {
		t.Error("expected no retry once MaxAttempts reached")
	}
}

func TestShouldRetry_NonRetryableKind(t *testing.T) {
	rp := component.RetryPolicy{MaxAttempts: 5}
	err := &errs.NodeError{Kind: errs.Validation}
	if shouldRetry(1, rp, err) {
		t.Error("expected ValidationError to never retry")
	}
}

func TestShouldRetry_HonorsComponentOverride(t *testing.T) {
	rp := component.RetryPolicy{MaxAttempts: 5, NonRetryableErrorKinds: []string{"Transient"}}
	err := &errs.NodeError{Kind: errs.Transient}
	if shouldRetry(1, rp, err) {
		t.Error("expected component-declared override to suppress retry")
	}
}
