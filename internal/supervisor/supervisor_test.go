package supervisor

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/therealbill/prober/internal/backoff"
	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/kernel"
	"github.com/therealbill/prober/internal/probe"
)

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(string, bool, classify.Category, time.Duration) {}

func newQuickKernel(name string) *kernel.Kernel {
	return kernel.New(kernel.Options{
		Descriptor:             probe.Descriptor{Name: name, Timeout: time.Millisecond, Check: func(ctx context.Context) error { return nil }},
		BreakerThreshold:       3,
		BreakerRecoveryTimeout: time.Second,
		Backoff:                backoff.Config{BaseInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 1.5, MaxFailures: 5},
		Rand:                   rand.New(rand.NewPCG(1, 1)),
		Recorder:               nopRecorder{},
		Logger:                 zap.NewNop(),
		Categorize:             true,
	})
}

func TestSupervisor_StopsCleanlyWithinGrace(t *testing.T) {
	kernels := []*kernel.Kernel{newQuickKernel("a"), newQuickKernel("b")}
	sup := New(kernels, zap.NewNop(), 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestSupervisor_Snapshot_ReturnsOnePerKernel(t *testing.T) {
	kernels := []*kernel.Kernel{newQuickKernel("a"), newQuickKernel("b"), newQuickKernel("c")}
	sup := New(kernels, zap.NewNop(), time.Second)

	snap := sup.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 states, got %d", len(snap))
	}
}

func TestSupervisor_GraceExceededReportsStragglers(t *testing.T) {
	blocked := kernel.New(kernel.Options{
		Descriptor: probe.Descriptor{
			Name:    "stuck",
			Timeout: time.Hour,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				// Deliberately ignore cancellation for a bit longer than the
				// supervisor's grace period to exercise the straggler path.
				time.Sleep(100 * time.Millisecond)
				return nil
			},
		},
		BreakerThreshold:       3,
		BreakerRecoveryTimeout: time.Second,
		Backoff:                backoff.Config{BaseInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1, MaxFailures: 1},
		Rand:                   rand.New(rand.NewPCG(1, 1)),
		Recorder:               nopRecorder{},
		Logger:                 zap.NewNop(),
		Categorize:             true,
	})

	sup := New([]*kernel.Kernel{blocked}, zap.NewNop(), 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := sup.Run(ctx)
	if err == nil {
		t.Fatal("expected a straggler error when a kernel outlives the grace period")
	}
	var target *strandedKernelError
	if !errors.As(err, &target) {
		t.Fatalf("expected a strandedKernelError in the chain, got %v", err)
	}
}
