// Package resources samples process memory and goroutine ("thread") counts
// on a low-frequency loop, publishing gauges and advisory warnings. It never
// disables or otherwise coordinates with probes.
package resources

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gauges is the narrow metrics surface the watcher writes to, implemented by
// internal/metrics.
type Gauges interface {
	SetMemoryUsageMB(mb float64)
	SetThreadCount(n int)
	SetResourceWarning(warningType string, active bool)
}

// Sample is a point-in-time resource reading, used by the exposition
// server's /health handler.
type Sample struct {
	MemoryMB int
	Threads  int
	Warnings []string
}

// Watcher periodically samples runtime.MemStats and goroutine counts.
type Watcher struct {
	gauges        Gauges
	logger        *zap.Logger
	interval      time.Duration
	memoryWarnMB  int
	threadWarnCnt int

	mu   sync.RWMutex
	last Sample
}

// New creates a Watcher. interval defaults to 30s if zero or negative.
func New(gauges Gauges, logger *zap.Logger, interval time.Duration, memoryWarnMB, threadWarnCnt int) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		gauges:        gauges,
		logger:        logger,
		interval:      interval,
		memoryWarnMB:  memoryWarnMB,
		threadWarnCnt: threadWarnCnt,
	}
}

// Run samples immediately, then on every tick, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.sampleOnce()

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.sampleOnce()
		}
	}
}

func (w *Watcher) sampleOnce() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	memMB := int(stats.Sys / (1024 * 1024))
	threads := runtime.NumGoroutine()

	var warnings []string
	memWarn := memMB >= w.memoryWarnMB
	threadWarn := threads >= w.threadWarnCnt
	if memWarn {
		warnings = append(warnings, "memory")
	}
	if threadWarn {
		warnings = append(warnings, "threads")
	}

	w.gauges.SetMemoryUsageMB(float64(memMB))
	w.gauges.SetThreadCount(threads)
	w.gauges.SetResourceWarning("memory", memWarn)
	w.gauges.SetResourceWarning("threads", threadWarn)

	w.mu.Lock()
	w.last = Sample{MemoryMB: memMB, Threads: threads, Warnings: warnings}
	w.mu.Unlock()

	if w.logger != nil && len(warnings) > 0 {
		w.logger.Warn("resource_warning",
			zap.Int("memory_mb", memMB),
			zap.Int("threads", threads),
			zap.Strings("warnings", warnings),
		)
	}
}

// Snapshot returns the most recent sample. Safe for concurrent use from the
// exposition server.
func (w *Watcher) Snapshot() Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
