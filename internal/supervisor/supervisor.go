// Package supervisor spawns, tracks, and gracefully stops the full set of
// probe kernels. It exclusively owns the kernel set; the exposition server
// only ever sees a read-only snapshot of it.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/therealbill/prober/internal/kernel"
)

// Supervisor owns a set of kernels and coordinates their lifecycle.
type Supervisor struct {
	kernels []*kernel.Kernel
	logger  *zap.Logger
	grace   time.Duration
}

// New creates a Supervisor over the given kernels.
func New(kernels []*kernel.Kernel, logger *zap.Logger, grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Supervisor{kernels: kernels, logger: logger, grace: grace}
}

// Run starts one goroutine per kernel and blocks until ctx is cancelled,
// then waits up to the configured grace period for all kernels to exit.
// Kernels that overrun the grace period are abandoned after being logged;
// any such stragglers are reported as a combined error via multierr.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	finished := make([]chan struct{}, len(s.kernels))
	for i, k := range s.kernels {
		finished[i] = make(chan struct{})
		wg.Add(1)
		go func(k *kernel.Kernel, fin chan struct{}) {
			defer wg.Done()
			defer close(fin)
			k.Run(ctx)
		}(k, finished[i])
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("supervisor_stopped_clean")
		return nil
	case <-time.After(s.grace):
		var errs error
		for i, k := range s.kernels {
			select {
			case <-finished[i]:
				continue
			default:
			}
			errs = multierr.Append(errs, &strandedKernelError{name: k.Name()})
		}
		s.logger.Warn("supervisor_grace_exceeded",
			zap.Duration("grace", s.grace),
			zap.Int("kernel_count", len(s.kernels)),
		)
		return errs
	}
}

// Snapshot returns a read-only view of every kernel's state. Safe for
// concurrent use by the exposition server; each kernel guards its own
// state independently, so no supervisor-level lock is required.
func (s *Supervisor) Snapshot() []kernel.State {
	out := make([]kernel.State, 0, len(s.kernels))
	for _, k := range s.kernels {
		out = append(out, k.Snapshot())
	}
	return out
}

type strandedKernelError struct {
	name string
}

func (e *strandedKernelError) Error() string {
	return "supervisor: kernel " + e.name + " did not stop within the grace period"
}
