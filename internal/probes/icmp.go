package probes

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/probe"
)

// icmpOnce issues a single ICMP echo via the host OS's ping tool, the
// capability named in the spec's design notes so that a raw-socket
// implementation could later be swapped in without touching the probe.
func icmpOnce(ctx context.Context, host string, deadline time.Duration) error {
	var args []string
	switch runtime.GOOS {
	case "windows":
		args = []string{"-n", "1", "-w", fmt.Sprintf("%d", deadline.Milliseconds()), host}
	case "darwin":
		args = []string{"-c", "1", "-t", fmt.Sprintf("%d", int(deadline.Seconds())), host}
	default: // linux and other unix variants
		args = []string{"-c", "1", "-W", fmt.Sprintf("%d", int(deadline.Seconds())), host}
	}

	cmd := exec.CommandContext(ctx, "ping", args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ip_ping: ping %s failed: %w: %w", host, err, classify.ErrNetwork)
	}
	return nil
}

// NewIPPingProbe issues a single ICMP echo to the configured server IP.
func NewIPPingProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "ip_ping",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			return icmpOnce(ctx, cfg.ServerIP.String(), cfg.ProbeInterval)
		},
	}
}
