package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/therealbill/prober/internal/classify"
)

func TestObserveOutcome_IncrementsLabeledCounter(t *testing.T) {
	m := New()
	m.ObserveOutcome("dns_mx_domain", true, classify.None, time.Millisecond)
	m.ObserveOutcome("dns_mx_domain", false, classify.DNS, time.Millisecond)

	got := testutil.ToFloat64(m.probeSuccessCount.WithLabelValues("dns_mx_domain", "true", "none"))
	if got != 1 {
		t.Fatalf("expected 1 success observation, got %v", got)
	}
	got = testutil.ToFloat64(m.probeSuccessCount.WithLabelValues("dns_mx_domain", "false", "dns"))
	if got != 1 {
		t.Fatalf("expected 1 dns-failure observation, got %v", got)
	}
}

func TestSetResourceWarning_TogglesGauge(t *testing.T) {
	m := New()
	m.SetResourceWarning("memory", true)
	if got := testutil.ToFloat64(m.resourceWarnings.WithLabelValues("memory")); got != 1 {
		t.Fatalf("expected 1 for active warning, got %v", got)
	}
	m.SetResourceWarning("memory", false)
	if got := testutil.ToFloat64(m.resourceWarnings.WithLabelValues("memory")); got != 0 {
		t.Fatalf("expected 0 after clearing warning, got %v", got)
	}
}

func TestSetMemoryAndThreadGauges(t *testing.T) {
	m := New()
	m.SetMemoryUsageMB(128)
	m.SetThreadCount(42)

	if got := testutil.ToFloat64(m.memoryUsageMB); got != 128 {
		t.Fatalf("expected memory gauge 128, got %v", got)
	}
	if got := testutil.ToFloat64(m.threadCount); got != 42 {
		t.Fatalf("expected thread gauge 42, got %v", got)
	}
}
