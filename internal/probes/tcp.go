package probes

import (
	"context"
	"net"
	"strconv"

	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/probe"
)

// tcpConnect attempts a raw TCP connection to (ip, port), succeeding iff the
// connection establishes before ctx's deadline.
func tcpConnect(ctx context.Context, ip net.IP, port int) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// NewHTTPPortProbe checks TCP reachability of the configured HTTP port.
func NewHTTPPortProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "http_port",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			return tcpConnect(ctx, cfg.ServerIP, cfg.HTTPPort)
		},
	}
}

// NewHTTPSPortProbe checks TCP reachability of the configured HTTPS port.
func NewHTTPSPortProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "https_port",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			return tcpConnect(ctx, cfg.ServerIP, cfg.HTTPSPort)
		},
	}
}

// NewMailPortProbe checks TCP reachability of the configured SMTP
// submission port.
func NewMailPortProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "mail_port",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			return tcpConnect(ctx, cfg.ServerIP, cfg.SubmissionPort)
		},
	}
}

// NewSMTPPortProbe checks TCP reachability of the configured plain SMTP
// port.
func NewSMTPPortProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "smtp_port",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			return tcpConnect(ctx, cfg.ServerIP, cfg.SMTPPort)
		},
	}
}
