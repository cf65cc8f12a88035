package probes

import (
	"context"
	"fmt"
	"net"

	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/probe"
)

// NewDNSMXDomainProbe resolves MX records for the configured MX domain.
// Success iff the resolver returns a non-empty set; an empty set is a
// check_failed, not a dns error, since the name itself resolved fine.
func NewDNSMXDomainProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "dns_mx_domain",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			var resolver net.Resolver
			records, err := resolver.LookupMX(ctx, cfg.MXDomain)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("dns_mx_domain: no MX records for %s: %w", cfg.MXDomain, classify.ErrCheckFailed)
			}
			return nil
		},
	}
}

// NewDNSMXIPProbe resolves MX records, then resolves A records for every MX
// target, and succeeds iff every target resolves to exactly the expected IP.
func NewDNSMXIPProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "dns_mx_ip",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			var resolver net.Resolver
			records, err := resolver.LookupMX(ctx, cfg.MXDomain)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("dns_mx_ip: no MX records for %s: %w", cfg.MXDomain, classify.ErrCheckFailed)
			}

			anyMissing := false
			var lastErr error
			for _, mx := range records {
				ips, err := resolver.LookupIP(ctx, "ip4", mx.Host)
				if err != nil || len(ips) == 0 {
					anyMissing = true
					lastErr = err
					continue
				}
				for _, ip := range ips {
					if !ip.Equal(cfg.ExpectedIP) {
						return fmt.Errorf("dns_mx_ip: %s resolved to %s, expected %s: %w",
							mx.Host, ip, cfg.ExpectedIP, classify.ErrCheckFailed)
					}
				}
			}
			if anyMissing {
				// An MX target is missing an address record: a DNS-layer
				// failure, not a check_failed mismatch.
				if lastErr != nil {
					return lastErr
				}
				var dnsErr net.DNSError
				dnsErr.Err = "no address records for an MX target"
				dnsErr.Name = cfg.MXDomain
				return &dnsErr
			}
			return nil
		},
	}
}
