package probes

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/probe"
)

// dialSMTP opens a plain TCP connection to addr and wraps it in a
// net/smtp.Client, which reads the server's greeting as part of
// construction.
func dialSMTP(ctx context.Context, addr, hostname string) (*smtp.Client, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, hostname)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

// classifyReplyCode maps an SMTP reply code to the network/check_failed
// boundary used by the unauthenticated envelope test: rejections (5xx) mean
// the server actively refused the envelope, transient failures (4xx) mean
// something is wrong at the network/service layer.
func classifyReplyCode(err error) error {
	var protoErr *textproto.Error
	if ok := asTextprotoError(err, &protoErr); ok {
		switch {
		case protoErr.Code >= 500:
			return fmt.Errorf("smtp: %d %s: %w", protoErr.Code, protoErr.Msg, classify.ErrCheckFailed)
		case protoErr.Code >= 400:
			return fmt.Errorf("smtp: %d %s: %w", protoErr.Code, protoErr.Msg, classify.ErrNetwork)
		}
	}
	return err
}

func asTextprotoError(err error, target **textproto.Error) bool {
	for err != nil {
		if pe, ok := err.(*textproto.Error); ok {
			*target = pe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// NewSMTPAuthenticatedProbe performs a full authenticated SMTP conversation
// against the submission port: EHLO, STARTTLS upgrade, EHLO again, AUTH
// PLAIN with the configured credentials, then QUIT.
func NewSMTPAuthenticatedProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "smtp_authenticated",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			addr := net.JoinHostPort(cfg.ServerIP.String(), strconv.Itoa(cfg.SubmissionPort))
			client, err := dialSMTP(ctx, addr, cfg.ServerHostname)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Hello("prober.local"); err != nil {
				return err
			}

			if ok, _ := client.Extension("STARTTLS"); !ok {
				return fmt.Errorf("smtp_authenticated: server did not advertise STARTTLS: %w", classify.ErrTLSHandshake)
			}
			if err := client.StartTLS(&tls.Config{ServerName: cfg.ServerHostname}); err != nil {
				return fmt.Errorf("smtp_authenticated: starttls upgrade failed: %w: %w", err, classify.ErrTLSHandshake)
			}

			auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.ServerHostname)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp_authenticated: %w: %w", err, classify.ErrSMTPAuth)
			}

			return client.Quit()
		},
	}
}

// NewSMTPUnauthenticatedProbe exercises the envelope path without
// credentials: EHLO, an optional (tolerated, not required) STARTTLS
// attempt, then MAIL FROM / RCPT TO / RSET / QUIT using the configured test
// addresses.
func NewSMTPUnauthenticatedProbe(cfg config.Config) probe.Descriptor {
	return probe.Descriptor{
		Name:    "smtp_unauthenticated",
		Timeout: cfg.ProbeInterval,
		Check: func(ctx context.Context) error {
			addr := net.JoinHostPort(cfg.ServerIP.String(), strconv.Itoa(cfg.SMTPPort))
			client, err := dialSMTP(ctx, addr, cfg.ServerHostname)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Hello("prober.local"); err != nil {
				return err
			}

			if ok, _ := client.Extension("STARTTLS"); ok {
				// Tolerated but not required on the plain port: a failed
				// upgrade here does not fail the probe.
				if err := client.StartTLS(&tls.Config{ServerName: cfg.ServerHostname}); err != nil {
					// The failed upgrade may leave this session unusable, so
					// the envelope test continues over a fresh plain session.
					_ = client.Close()
					client, err = dialSMTP(ctx, addr, cfg.ServerHostname)
					if err != nil {
						return err
					}
					defer client.Close()
					if err := client.Hello("prober.local"); err != nil {
						return err
					}
				}
			}

			if err := client.Mail(cfg.FromAddress); err != nil {
				return classifyReplyCode(err)
			}
			if err := client.Rcpt(cfg.ToAddress); err != nil {
				return classifyReplyCode(err)
			}
			if err := client.Reset(); err != nil {
				return classifyReplyCode(err)
			}

			return client.Quit()
		},
	}
}
