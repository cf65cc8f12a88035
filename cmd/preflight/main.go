// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/therealbill/prober/internal/config"
)

func main() {
	fail := func(msg string) { fmt.Fprintln(os.Stderr, "✖", msg) }
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	required := []string{
		"EMAIL_SERVER_IP",
		"EMAIL_SERVER_HOSTNAME",
		"EMAIL_MX_DOMAIN",
		"EXPECTED_IP",
		"EMAIL_SERVER_HTTP_PORT",
		"EMAIL_SERVER_HTTPS_PORT",
		"EMAIL_SERVER_SMTP_PORT",
		"EMAIL_SERVER_SMTP_SECURE_PORT",
		"EMAIL_SMTP_USERNAME",
		"EMAIL_SMTP_PASSWORD",
		"FROM_ADDRESS",
		"TO_ADDRESS",
	}
	optional := []string{
		"PROBE_COLLECTION_INTERVAL",
		"METRICS_EXPORT_PORT",
		"CIRCUIT_BREAKER_FAILURE_THRESHOLD",
		"CIRCUIT_BREAKER_RECOVERY_TIMEOUT",
		"BACKOFF_BASE_INTERVAL",
		"BACKOFF_MAX_INTERVAL",
		"BACKOFF_MULTIPLIER",
		"BACKOFF_MAX_FAILURES",
		"ENABLE_ERROR_CATEGORIZATION",
		"ENABLE_ENHANCED_LOGGING",
		"RESOURCE_MEMORY_WARNING_MB",
		"RESOURCE_THREAD_WARNING_COUNT",
		"RESOURCE_CHECK_ENABLED",
		"LOG_DIR",
	}

	anyMissing := false
	for _, name := range required {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			fail(name + " is required and is not set.")
			anyMissing = true
			continue
		}
		ok(name + "=" + v)
	}

	for _, name := range optional {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			warn(name + " not set; a default will be used.")
			continue
		}
		ok(name + "=" + v)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
		os.Exit(1)
	}
	if anyMissing {
		os.Exit(1)
	}

	ok(fmt.Sprintf("probe interval %s, backoff base %s max %s, breaker threshold %d recovery %s",
		cfg.ProbeInterval, cfg.BackoffBaseInterval, cfg.BackoffMaxInterval,
		cfg.BreakerFailureThreshold, cfg.BreakerRecoveryTimeout))
	ok("preflight passed")
}
