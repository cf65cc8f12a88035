package probes

import (
	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/probe"
)

// BuildAll returns every probe descriptor the prober runs, in the fixed
// order used for display and for the composite health percentage.
func BuildAll(cfg config.Config) []probe.Descriptor {
	return []probe.Descriptor{
		NewIPPingProbe(cfg),
		NewDNSMXDomainProbe(cfg),
		NewDNSMXIPProbe(cfg),
		NewHTTPPortProbe(cfg),
		NewHTTPSPortProbe(cfg),
		NewSMTPPortProbe(cfg),
		NewMailPortProbe(cfg),
		NewHTTPSCertificateProbe(cfg),
		NewSMTPCertificateProbe(cfg),
		NewSMTPAuthenticatedProbe(cfg),
		NewSMTPUnauthenticatedProbe(cfg),
	}
}
