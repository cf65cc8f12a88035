// Package config loads and validates the prober's environment-supplied
// configuration. Nothing in this package talks to the network; it only
// parses os.Getenv values into a Config and rejects anything out of bounds.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable configuration record for the lifetime of the process.
type Config struct {
	ServerIP       net.IP
	ServerHostname string
	MXDomain       string
	ExpectedIP     net.IP

	HTTPPort       int
	HTTPSPort      int
	SMTPPort       int
	SubmissionPort int

	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	ToAddress    string

	ProbeInterval time.Duration

	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration

	BackoffBaseInterval time.Duration
	BackoffMaxInterval  time.Duration
	BackoffMultiplier   float64
	BackoffMaxFailures  int

	EnableErrorCategorization bool
	EnableEnhancedLogging     bool

	ResourceMemoryWarningMB    int
	ResourceThreadWarningCount int
	ResourceCheckEnabled       bool

	MetricsPort int

	LogDir        string
	ShutdownGrace time.Duration
}

// FromEnv reads and validates the configuration from the process environment.
// It returns an error describing the first invalid or missing value it finds;
// callers must treat any error as fatal and exit before starting probes.
func FromEnv() (Config, error) {
	var cfg Config
	var err error

	if cfg.ServerIP, err = reqIP("EMAIL_SERVER_IP"); err != nil {
		return cfg, err
	}
	if cfg.ServerHostname, err = reqString("EMAIL_SERVER_HOSTNAME"); err != nil {
		return cfg, err
	}
	if cfg.MXDomain, err = reqString("EMAIL_MX_DOMAIN"); err != nil {
		return cfg, err
	}
	if cfg.ExpectedIP, err = reqIP("EXPECTED_IP"); err != nil {
		return cfg, err
	}

	if cfg.HTTPPort, err = reqPort("EMAIL_SERVER_HTTP_PORT"); err != nil {
		return cfg, err
	}
	if cfg.HTTPSPort, err = reqPort("EMAIL_SERVER_HTTPS_PORT"); err != nil {
		return cfg, err
	}
	if cfg.SMTPPort, err = reqPort("EMAIL_SERVER_SMTP_PORT"); err != nil {
		return cfg, err
	}
	if cfg.SubmissionPort, err = reqPort("EMAIL_SERVER_SMTP_SECURE_PORT"); err != nil {
		return cfg, err
	}

	if cfg.SMTPUsername, err = reqString("EMAIL_SMTP_USERNAME"); err != nil {
		return cfg, err
	}
	if cfg.SMTPPassword, err = reqString("EMAIL_SMTP_PASSWORD"); err != nil {
		return cfg, err
	}
	if cfg.FromAddress, err = reqString("FROM_ADDRESS"); err != nil {
		return cfg, err
	}
	if cfg.ToAddress, err = reqString("TO_ADDRESS"); err != nil {
		return cfg, err
	}

	probeSeconds, err := intInRange("PROBE_COLLECTION_INTERVAL", 60, 30, 3600)
	if err != nil {
		return cfg, err
	}
	cfg.ProbeInterval = time.Duration(probeSeconds) * time.Second

	if cfg.MetricsPort, err = intInRange("METRICS_EXPORT_PORT", 9090, 1, 65535); err != nil {
		return cfg, err
	}

	if cfg.BreakerFailureThreshold, err = intInRange("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5, 1, 1000); err != nil {
		return cfg, err
	}
	breakerRecoverySeconds, err := intInRange("CIRCUIT_BREAKER_RECOVERY_TIMEOUT", 60, 1, 86400)
	if err != nil {
		return cfg, err
	}
	cfg.BreakerRecoveryTimeout = time.Duration(breakerRecoverySeconds) * time.Second

	backoffBaseSeconds, err := intInRange("BACKOFF_BASE_INTERVAL", probeSeconds, 1, 3600)
	if err != nil {
		return cfg, err
	}
	cfg.BackoffBaseInterval = time.Duration(backoffBaseSeconds) * time.Second

	backoffMaxSeconds, err := intInRange("BACKOFF_MAX_INTERVAL", 300, backoffBaseSeconds, 86400)
	if err != nil {
		return cfg, err
	}
	cfg.BackoffMaxInterval = time.Duration(backoffMaxSeconds) * time.Second

	if cfg.BackoffMultiplier, err = floatAtLeast("BACKOFF_MULTIPLIER", 2.0, 1.0); err != nil {
		return cfg, err
	}
	if cfg.BackoffMaxFailures, err = intInRange("BACKOFF_MAX_FAILURES", 5, 0, 1000); err != nil {
		return cfg, err
	}

	cfg.EnableErrorCategorization = boolDefault("ENABLE_ERROR_CATEGORIZATION", true)
	cfg.EnableEnhancedLogging = boolDefault("ENABLE_ENHANCED_LOGGING", false)

	if cfg.ResourceMemoryWarningMB, err = intInRange("RESOURCE_MEMORY_WARNING_MB", 512, 1, 1<<20); err != nil {
		return cfg, err
	}
	if cfg.ResourceThreadWarningCount, err = intInRange("RESOURCE_THREAD_WARNING_COUNT", 200, 1, 1<<20); err != nil {
		return cfg, err
	}
	cfg.ResourceCheckEnabled = boolDefault("RESOURCE_CHECK_ENABLED", true)

	cfg.LogDir = strings.TrimSpace(os.Getenv("LOG_DIR"))
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	cfg.ShutdownGrace = 10 * time.Second

	return cfg, nil
}

func reqString(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

func reqIP(key string) (net.IP, error) {
	v, err := reqString(key)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return nil, fmt.Errorf("config: %s is not a valid IP literal: %q", key, v)
	}
	return ip, nil
}

func reqPort(key string) (int, error) {
	return intInRange(key, 0, 1, 65535)
}

func intInRange(key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		if def == 0 {
			return 0, fmt.Errorf("config: %s is required", key)
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s is not an integer: %q", key, raw)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("config: %s=%d is out of range [%d, %d]", key, n, lo, hi)
	}
	return n, nil
}

func floatAtLeast(key string, def, min float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s is not a number: %q", key, raw)
	}
	if f < min {
		return 0, fmt.Errorf("config: %s=%v must be >= %v", key, f, min)
	}
	return f, nil
}

func boolDefault(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
