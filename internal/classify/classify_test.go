package classify

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/therealbill/prober/internal/breaker"
)

func TestClassify_DisabledAlwaysUnknown(t *testing.T) {
	if got := Classify(ErrCheckFailed, false); got != Unknown {
		t.Fatalf("expected Unknown when categorization disabled, got %s", got)
	}
}

func TestClassify_NilCauseIsUnknown(t *testing.T) {
	if got := Classify(nil, true); got != Unknown {
		t.Fatalf("expected Unknown for nil cause, got %s", got)
	}
}

func TestClassify_CircuitBreakerTakesPriority(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", breaker.ErrOpen)
	if got := Classify(err, true); got != CircuitBreaker {
		t.Fatalf("expected CircuitBreaker, got %s", got)
	}
}

func TestClassify_Timeout(t *testing.T) {
	if got := Classify(context.DeadlineExceeded, true); got != Timeout {
		t.Fatalf("expected Timeout for context.DeadlineExceeded, got %s", got)
	}

	netErr := &net.OpError{Op: "dial", Err: timeoutError{}}
	if got := Classify(netErr, true); got != Timeout {
		t.Fatalf("expected Timeout for a timing-out net.Error, got %s", got)
	}
}

func TestClassify_DNS(t *testing.T) {
	err := &net.DNSError{Err: "no such host", Name: "example.invalid"}
	if got := Classify(err, true); got != DNS {
		t.Fatalf("expected DNS, got %s", got)
	}
}

func TestClassify_Cert(t *testing.T) {
	if got := Classify(ErrTLSHandshake, true); got != Cert {
		t.Fatalf("expected Cert for ErrTLSHandshake, got %s", got)
	}
	if got := Classify(x509.HostnameError{}, true); got != Cert {
		t.Fatalf("expected Cert for x509.HostnameError, got %s", got)
	}
}

func TestClassify_Auth(t *testing.T) {
	err := fmt.Errorf("rejected: %w", ErrSMTPAuth)
	if got := Classify(err, true); got != Auth {
		t.Fatalf("expected Auth, got %s", got)
	}
}

func TestClassify_Network(t *testing.T) {
	err := fmt.Errorf("refused: %w", ErrNetwork)
	if got := Classify(err, true); got != Network {
		t.Fatalf("expected Network, got %s", got)
	}
}

func TestClassify_CheckFailed(t *testing.T) {
	err := fmt.Errorf("mismatch: %w", ErrCheckFailed)
	if got := Classify(err, true); got != CheckFailed {
		t.Fatalf("expected CheckFailed, got %s", got)
	}
}

func TestClassify_UnknownFallthrough(t *testing.T) {
	if got := Classify(errors.New("something unexpected"), true); got != Unknown {
		t.Fatalf("expected Unknown, got %s", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
