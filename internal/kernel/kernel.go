// Package kernel implements the per-probe coordinator: wait, execute through
// the breaker, classify the outcome, record metrics, compute the next sleep,
// and loop until cancelled.
package kernel

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/therealbill/prober/internal/backoff"
	"github.com/therealbill/prober/internal/breaker"
	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/probe"
)

// Recorder is the metrics sink a Kernel reports outcomes to. Implemented by
// internal/metrics; kept as a narrow interface here so that kernel does not
// import metrics and tests can pass a fake recorder.
type Recorder interface {
	ObserveOutcome(probeName string, success bool, category classify.Category, latency time.Duration)
}

// State is a read-only snapshot of one kernel's state, consumed by the
// exposition server.
type State struct {
	Name                string
	BreakerState        breaker.State
	ConsecutiveFailures int
	TotalFailures       int
	LastCategory        classify.Category
	LastOutcomeAt       time.Time
	LastSuccess         bool
}

// Kernel owns one probe's lifecycle.
type Kernel struct {
	descriptor probe.Descriptor
	breaker    *breaker.Breaker
	backoffCfg backoff.Config
	rng        *rand.Rand
	recorder   Recorder
	logger     *zap.Logger
	enhanced   bool
	categorize bool

	mu                  sync.Mutex
	consecutiveFailures int
	totalFailures       int
	lastCategory        classify.Category
	lastOutcomeAt       time.Time
	lastSuccess         bool
}

// Options configures a new Kernel.
type Options struct {
	Descriptor            probe.Descriptor
	BreakerThreshold       int
	BreakerRecoveryTimeout time.Duration
	Backoff                backoff.Config
	Rand                   *rand.Rand
	Recorder               Recorder
	Logger                 *zap.Logger
	EnhancedLogging        bool
	Categorize             bool
}

// New builds a Kernel from Options, constructing its own breaker.
func New(opts Options) *Kernel {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Kernel{
		descriptor: opts.Descriptor,
		breaker:    breaker.New(opts.BreakerThreshold, opts.BreakerRecoveryTimeout),
		backoffCfg: opts.Backoff,
		rng:        rng,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		enhanced:   opts.EnhancedLogging,
		categorize: opts.Categorize,
	}
}

// Run executes the probe's lifecycle loop until ctx is cancelled.
func (k *Kernel) Run(ctx context.Context) {
	sleep := k.backoffCfg.BaseInterval

	for {
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		sleep = k.runOnce(ctx)
	}
}

// runOnce executes a single check cycle and returns the next sleep interval.
func (k *Kernel) runOnce(ctx context.Context) time.Duration {
	checkCtx, cancel := context.WithTimeout(ctx, k.descriptor.Timeout)
	defer cancel()

	start := time.Now()
	err := k.breaker.Call(func() error {
		return k.descriptor.Check(checkCtx)
	})
	latency := time.Since(start)

	k.mu.Lock()
	defer k.mu.Unlock()

	if err == nil {
		k.consecutiveFailures = 0
		k.lastCategory = classify.None
		k.lastSuccess = true
		k.lastOutcomeAt = time.Now()
		k.recorder.ObserveOutcome(k.descriptor.Name, true, classify.None, latency)
		k.logSuccess(latency)
	} else {
		category := classify.Classify(err, k.categorize)
		k.consecutiveFailures++
		k.totalFailures++
		k.lastCategory = category
		k.lastSuccess = false
		k.lastOutcomeAt = time.Now()
		k.recorder.ObserveOutcome(k.descriptor.Name, false, category, latency)
		k.logFailure(err, category, latency)
	}

	return backoff.Compute(k.consecutiveFailures, k.backoffCfg, k.rng)
}

func (k *Kernel) logSuccess(latency time.Duration) {
	if k.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("probe", k.descriptor.Name),
		zap.Duration("latency", latency),
	}
	if k.enhanced {
		fields = append(fields,
			zap.Int("consecutive_failures", k.consecutiveFailures),
			zap.Int("total_failures", k.totalFailures),
			zap.String("breaker_state", k.breaker.State().String()),
		)
	}
	k.logger.Info("probe_success", fields...)
}

func (k *Kernel) logFailure(err error, category classify.Category, latency time.Duration) {
	if k.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("probe", k.descriptor.Name),
		zap.Duration("latency", latency),
		zap.String("error_type", string(category)),
		zap.Error(err),
	}
	if k.enhanced {
		fields = append(fields,
			zap.Int("consecutive_failures", k.consecutiveFailures),
			zap.Int("total_failures", k.totalFailures),
			zap.String("breaker_state", k.breaker.State().String()),
		)
	}
	k.logger.Warn("probe_failure", fields...)
}

// Snapshot returns a consistent, read-only view of the kernel's state.
func (k *Kernel) Snapshot() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return State{
		Name:                k.descriptor.Name,
		BreakerState:        k.breaker.State(),
		ConsecutiveFailures: k.consecutiveFailures,
		TotalFailures:       k.totalFailures,
		LastCategory:        k.lastCategory,
		LastOutcomeAt:       k.lastOutcomeAt,
		LastSuccess:         k.lastSuccess,
	}
}

// Name returns the probe's stable name.
func (k *Kernel) Name() string {
	return k.descriptor.Name
}
