package retry

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBackoffDelayProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("delay never exceeds MaxDelay", prop.ForAll(
		func(attempt int) bool {
			policy := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2, Jitter: false}
			return backoffDelay(policy, attempt) <= policy.MaxDelay
		},
		gen.IntRange(0, 20),
	))

	properties.Property("delay is non-decreasing across attempts before the cap", prop.ForAll(
		func(attempt int) bool {
			policy := Policy{InitialDelay: time.Millisecond, MaxDelay: time.Hour, ExponentialBase: 2, Jitter: false}
			return backoffDelay(policy, attempt+1) >= backoffDelay(policy, attempt)
		},
		gen.IntRange(0, 10),
	))

	properties.Property("jittered delay stays within [0.5, 1.0] of the unjittered delay", prop.ForAll(
		func(attempt int) bool {
			policy := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Minute, ExponentialBase: 2, Jitter: false}
			unjittered := backoffDelay(policy, attempt)

			jittered := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Minute, ExponentialBase: 2, Jitter: true}
			d := backoffDelay(jittered, attempt)
			return d >= unjittered/2 && d <= unjittered
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
