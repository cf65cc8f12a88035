package probes

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/therealbill/prober/internal/classify"
	"github.com/therealbill/prober/internal/config"
)

// fakeSMTPServer runs a scripted, single-connection SMTP server for exactly
// one exchange, driven by a table of (expected prefix -> reply) steps.
type fakeSMTPScript struct {
	greeting string
	replies  map[string]string // uppercased command verb -> full reply line(s)
}

func startFakeSMTP(t *testing.T, script fakeSMTPScript) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "%s\r\n", script.greeting)

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			verb := commandVerb(line)
			reply, ok := script.replies[verb]
			if !ok {
				fmt.Fprintf(conn, "502 command not recognized\r\n")
				continue
			}
			fmt.Fprintf(conn, "%s\r\n", reply)
			if verb == "QUIT" {
				return
			}
		}
	}()

	return ln.Addr()
}

func commandVerb(line string) string {
	for i, c := range line {
		if c == ' ' || c == '\r' || c == '\n' {
			line = line[:i]
			break
		}
	}
	upper := make([]byte, len(line))
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	return string(upper)
}

func TestSMTPUnauthenticated_AcceptedEnvelopeSucceeds(t *testing.T) {
	addr := startFakeSMTP(t, fakeSMTPScript{
		greeting: "220 fake.example ESMTP",
		replies: map[string]string{
			"EHLO": "250-fake.example\r\n250 OK",
			"MAIL": "250 2.1.0 OK",
			"RCPT": "250 2.1.5 OK",
			"RSET": "250 OK",
			"QUIT": "221 Bye",
		},
	})
	tcpAddr := addr.(*net.TCPAddr)

	cfg := config.Config{
		ServerIP:       tcpAddr.IP,
		ServerHostname: "fake.example",
		SMTPPort:       tcpAddr.Port,
		FromAddress:    "prober@example.com",
		ToAddress:      "postmaster@example.com",
		ProbeInterval:  2 * time.Second,
	}
	d := NewSMTPUnauthenticatedProbe(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	if err := d.Check(ctx); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestSMTPUnauthenticated_RejectedRecipientIsCheckFailed(t *testing.T) {
	addr := startFakeSMTP(t, fakeSMTPScript{
		greeting: "220 fake.example ESMTP",
		replies: map[string]string{
			"EHLO": "250 OK",
			"MAIL": "250 2.1.0 OK",
			"RCPT": "550 5.1.1 no such user",
			"QUIT": "221 Bye",
		},
	})
	tcpAddr := addr.(*net.TCPAddr)

	cfg := config.Config{
		ServerIP:       tcpAddr.IP,
		ServerHostname: "fake.example",
		SMTPPort:       tcpAddr.Port,
		FromAddress:    "prober@example.com",
		ToAddress:      "nobody@example.com",
		ProbeInterval:  2 * time.Second,
	}
	d := NewSMTPUnauthenticatedProbe(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	err := d.Check(ctx)
	if err == nil {
		t.Fatal("expected an error for a rejected recipient")
	}
	if got := classify.Classify(err, true); got != classify.CheckFailed {
		t.Fatalf("expected check_failed classification, got %s", got)
	}
}

func TestSMTPUnauthenticated_TransientFailureIsNetwork(t *testing.T) {
	addr := startFakeSMTP(t, fakeSMTPScript{
		greeting: "220 fake.example ESMTP",
		replies: map[string]string{
			"EHLO": "250 OK",
			"MAIL": "451 4.3.0 temporary failure",
			"QUIT": "221 Bye",
		},
	})
	tcpAddr := addr.(*net.TCPAddr)

	cfg := config.Config{
		ServerIP:       tcpAddr.IP,
		ServerHostname: "fake.example",
		SMTPPort:       tcpAddr.Port,
		FromAddress:    "prober@example.com",
		ToAddress:      "postmaster@example.com",
		ProbeInterval:  2 * time.Second,
	}
	d := NewSMTPUnauthenticatedProbe(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	err := d.Check(ctx)
	if err == nil {
		t.Fatal("expected an error for a 4xx MAIL reply")
	}
	if got := classify.Classify(err, true); got != classify.Network {
		t.Fatalf("expected network classification, got %s", got)
	}
}

func TestSMTPAuthenticated_NoStartTLSIsCertClassified(t *testing.T) {
	addr := startFakeSMTP(t, fakeSMTPScript{
		greeting: "220 fake.example ESMTP",
		replies: map[string]string{
			"EHLO": "250 OK",
			"QUIT": "221 Bye",
		},
	})
	tcpAddr := addr.(*net.TCPAddr)

	cfg := config.Config{
		ServerIP:       tcpAddr.IP,
		ServerHostname: "fake.example",
		SubmissionPort: tcpAddr.Port,
		SMTPUsername:   "user",
		SMTPPassword:   "pass",
		ProbeInterval:  2 * time.Second,
	}
	d := NewSMTPAuthenticatedProbe(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	err := d.Check(ctx)
	if err == nil {
		t.Fatal("expected an error when STARTTLS is not advertised")
	}
	if got := classify.Classify(err, true); got != classify.Cert {
		t.Fatalf("expected cert classification, got %s", got)
	}
}
