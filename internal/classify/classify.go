// Package classify maps a probe failure cause to one of a fixed taxonomy of
// operationally meaningful categories, used to label metrics and logs.
package classify

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"syscall"

	"github.com/therealbill/prober/internal/breaker"
)

// Category is a member of the closed error taxonomy.
type Category string

const (
	Network        Category = "network"
	DNS            Category = "dns"
	Auth           Category = "auth"
	Cert           Category = "cert"
	Timeout        Category = "timeout"
	CheckFailed    Category = "check_failed"
	CircuitBreaker Category = "circuit_breaker"
	Unknown        Category = "unknown"

	// None labels a successful outcome; it is not part of the failure
	// taxonomy but is the error_type metric label success=true carries.
	None Category = "none"
)

// ErrCheckFailed is the sentinel a probe's own predicate raises when the
// check executed cleanly but the observed state did not satisfy it.
var ErrCheckFailed = errors.New("classify: check failed")

// ErrSMTPAuth is the sentinel raised when an SMTP server rejects credentials
// (535 or an equivalent authentication-related refusal).
var ErrSMTPAuth = errors.New("classify: smtp authentication rejected")

// ErrTLSHandshake is the sentinel raised when a TLS handshake itself fails
// (protocol negotiation, not a certificate validation error).
var ErrTLSHandshake = errors.New("classify: tls handshake rejected")

// ErrNetwork is a generic sentinel for socket-level failures that don't map
// cleanly onto a stdlib error type (e.g. a non-2xx SMTP 4xx reply).
var ErrNetwork = errors.New("classify: network error")

// Classify applies the decision rules in order and returns the resulting
// category. When enabled is false every cause is reported as Unknown.
func Classify(cause error, enabled bool) Category {
	if !enabled {
		return Unknown
	}
	if cause == nil {
		return Unknown
	}

	if errors.Is(cause, breaker.ErrOpen) {
		return CircuitBreaker
	}

	if isTimeout(cause) {
		return Timeout
	}

	var dnsErr *net.DNSError
	if errors.As(cause, &dnsErr) {
		return DNS
	}

	if isCertError(cause) {
		return Cert
	}

	if errors.Is(cause, ErrSMTPAuth) {
		return Auth
	}

	if isNetworkError(cause) {
		return Network
	}

	if errors.Is(cause, ErrCheckFailed) {
		return CheckFailed
	}

	return Unknown
}

func isTimeout(cause error) bool {
	if errors.Is(cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isCertError(cause error) bool {
	if errors.Is(cause, ErrTLSHandshake) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(cause, &hostErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(cause, &invalidErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(cause, &authErr) {
		return true
	}
	return false
}

func isNetworkError(cause error) bool {
	if errors.Is(cause, ErrNetwork) {
		return true
	}
	if errors.Is(cause, syscall.ECONNREFUSED) || errors.Is(cause, syscall.ECONNRESET) ||
		errors.Is(cause, syscall.EHOSTUNREACH) || errors.Is(cause, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(cause, &opErr) {
		return true
	}
	return false
}
