package main

import (
	"context"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/therealbill/prober/internal/backoff"
	"github.com/therealbill/prober/internal/config"
	"github.com/therealbill/prober/internal/exposition"
	"github.com/therealbill/prober/internal/kernel"
	"github.com/therealbill/prober/internal/logging"
	"github.com/therealbill/prober/internal/metrics"
	"github.com/therealbill/prober/internal/probes"
	"github.com/therealbill/prober/internal/resources"
	"github.com/therealbill/prober/internal/supervisor"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	kernels := buildKernels(cfg, met, logger)
	sup := supervisor.New(kernels, logger, cfg.ShutdownGrace)

	watcher := resources.New(met, logger, 30*time.Second, cfg.ResourceMemoryWarningMB, cfg.ResourceThreadWarningCount)

	exp := exposition.New(logger, met.Registry, sup, watcher)
	addr := formatMetricsAddr(cfg.MetricsPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("exposition_listen_failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: exp.Router(),
	}

	go func() {
		logger.Info("exposition_listen", zap.String("addr", httpServer.Addr))
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("exposition_serve_failed", zap.Error(err))
		}
	}()

	if cfg.ResourceCheckEnabled {
		go watcher.Run(ctx)
	}

	supErr := sup.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if supErr != nil {
		logger.Warn("shutdown_with_stragglers", zap.Error(supErr))
	} else {
		logger.Info("shutdown_clean")
	}
}

// buildKernels wires every probe descriptor into its own Kernel, each with
// an independently seeded random source so their jittered backoffs don't
// synchronize.
func buildKernels(cfg config.Config, met *metrics.Metrics, logger *zap.Logger) []*kernel.Kernel {
	descriptors := probes.BuildAll(cfg)
	backoffCfg := backoff.Config{
		BaseInterval: cfg.BackoffBaseInterval,
		MaxInterval:  cfg.BackoffMaxInterval,
		Multiplier:   cfg.BackoffMultiplier,
		MaxFailures:  cfg.BackoffMaxFailures,
	}

	kernels := make([]*kernel.Kernel, 0, len(descriptors))
	for i, d := range descriptors {
		seed := uint64(time.Now().UnixNano()) + uint64(i)
		kernels = append(kernels, kernel.New(kernel.Options{
			Descriptor:             d,
			BreakerThreshold:       cfg.BreakerFailureThreshold,
			BreakerRecoveryTimeout: cfg.BreakerRecoveryTimeout,
			Backoff:                backoffCfg,
			Rand:                   rand.New(rand.NewPCG(seed, uint64(i))),
			Recorder:               met,
			Logger:                 logger,
			EnhancedLogging:        cfg.EnableEnhancedLogging,
			Categorize:             cfg.EnableErrorCategorization,
		}))
	}
	return kernels
}

func formatMetricsAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
