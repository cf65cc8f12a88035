// Package probe defines the capability every health check implements: a
// stable name and a check function that either succeeds or fails with a
// cause. Concrete probes live in internal/probes; the kernel that drives
// them lives in internal/kernel.
package probe

import (
	"context"
	"time"
)

// CheckFunc performs one health check attempt. It must respect ctx's
// deadline and return promptly once it elapses.
type CheckFunc func(ctx context.Context) error

// Descriptor is a probe's identity plus its pure check function. Descriptors
// carry no mutable state; all per-run state lives in the owning kernel.
type Descriptor struct {
	Name    string
	Timeout time.Duration
	Check   CheckFunc
}
