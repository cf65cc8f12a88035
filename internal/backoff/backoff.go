// Package backoff computes the next sleep interval for a probe kernel from
// its consecutive-failure count, growing exponentially up to a cap and
// jittered to avoid synchronized retries across probes.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Config holds the tunable parameters of the backoff formula.
type Config struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
	Multiplier   float64
	MaxFailures  int
}

const minInterval = time.Millisecond

// Compute derives the next sleep interval for the given consecutive-failure
// count. rng supplies the jitter term; callers that need determinism (tests,
// the testable properties in the spec) pass a fixed-seed *rand.Rand.
//
// raw = base * multiplier^min(failures, maxFailures)
// capped = min(raw, max)
// final = capped * (1 + U(-0.2, +0.2)), clamped to a 1ms floor.
func Compute(consecutiveFailures int, cfg Config, rng *rand.Rand) time.Duration {
	exponent := consecutiveFailures
	if exponent > cfg.MaxFailures {
		exponent = cfg.MaxFailures
	}
	if exponent < 0 {
		exponent = 0
	}

	raw := float64(cfg.BaseInterval) * math.Pow(cfg.Multiplier, float64(exponent))

	capped := raw
	if max := float64(cfg.MaxInterval); capped > max {
		capped = max
	}

	jitter := 1 + (rng.Float64()*0.4 - 0.2) // U(-0.2, +0.2)
	final := time.Duration(capped * jitter)

	if final < minInterval {
		final = minInterval
	}
	return final
}
