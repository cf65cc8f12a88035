// Package metrics defines the prober's Prometheus metric set and the single
// shared mutable resource every probe worker is allowed to touch
// concurrently: the counter registry itself.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/therealbill/prober/internal/classify"
)

// Metrics bundles every metric the exposition server registers, grounded on
// infodancer-smtpd's PrometheusCollector shape (a struct of pre-built
// collectors, registered once in the constructor).
type Metrics struct {
	Registry *prometheus.Registry

	probeSuccessCount *prometheus.CounterVec
	memoryUsageMB     prometheus.Gauge
	threadCount       prometheus.Gauge
	resourceWarnings  *prometheus.GaugeVec
}

// New creates a Metrics bundle and registers all collectors on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		probeSuccessCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "email_probe_success_count",
			Help: "Count of probe executions, labeled by probe, success, and error_type.",
		}, []string{"probe", "success", "error_type"}),
		memoryUsageMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "email_probe_memory_usage_mb",
			Help: "Memory obtained from the OS by the Go runtime (MemStats.Sys), in MB; not the resident set size.",
		}),
		threadCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "email_probe_thread_count",
			Help: "Number of goroutines in the prober process, probe workers included.",
		}),
		resourceWarnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "email_probe_resource_warnings",
			Help: "1 if the named resource warning is currently active, else 0.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.probeSuccessCount,
		m.memoryUsageMB,
		m.threadCount,
		m.resourceWarnings,
	)

	return m
}

// ObserveOutcome implements kernel.Recorder. latency is accepted for
// interface symmetry with future histogram instrumentation but is not
// itself published as a metric by this component.
func (m *Metrics) ObserveOutcome(probeName string, success bool, category classify.Category, _ time.Duration) {
	m.probeSuccessCount.WithLabelValues(probeName, boolLabel(success), string(category)).Inc()
}

// SetMemoryUsageMB publishes the current memory sample.
func (m *Metrics) SetMemoryUsageMB(mb float64) {
	m.memoryUsageMB.Set(mb)
}

// SetThreadCount publishes the current goroutine count.
func (m *Metrics) SetThreadCount(n int) {
	m.threadCount.Set(float64(n))
}

// SetResourceWarning sets the named warning gauge to 0 or 1.
func (m *Metrics) SetResourceWarning(warningType string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	m.resourceWarnings.WithLabelValues(warningType).Set(v)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
