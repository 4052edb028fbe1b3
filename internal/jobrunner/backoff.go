package jobrunner

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	backoffBase    = 1 * time.Second
	backoffFactor  = 2.0
	backoffCap     = 60 * time.Second
)

// nextEligibleDelay computes the exponential-with-full-jitter retry delay
// for the given attempt count, per spec.md §4.5: base 1s, factor 2, cap 60s,
// full jitter. Built on cenkalti/backoff/v4's ExponentialBackOff rather than
// a hand-rolled jitter function — RandomizationFactor 1.0 spreads the
// interval over [0, 2x] around the capped exponential value, approximating
// full jitter.
func nextEligibleDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffBase
	b.Multiplier = backoffFactor
	b.MaxInterval = backoffCap
	b.RandomizationFactor = 1.0
	b.MaxElapsedTime = 0 // unbounded retries for Transient failures

	var interval time.Duration
	for i := 0; i <= attempts; i++ {
		interval = b.NextBackOff()
	}
	if interval == backoff.Stop {
		interval = backoffCap
	}
	return interval
}
