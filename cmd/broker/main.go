// Command broker runs the pub/sub broker: a duplex WebSocket listener
// for subscribe/unsubscribe/publish/ping sessions and a control-plane
// HTTP listener for topic administration, health, stats, and metrics.
// Grounded on adred-codev-ws_poc/go-server-3/cmd/odin-ws/main.go's
// wiring and signal-driven shutdown sequence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pubsub-broker/internal/config"
	"pubsub-broker/internal/control"
	"pubsub-broker/internal/logging"
	"pubsub-broker/internal/metrics"
	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/sysmetrics"
	"pubsub-broker/internal/topic"
	"pubsub-broker/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	topicCfg := topic.Config{
		ReplayCapacity:   cfg.Topic.ReplayCapacity,
		QueueCapacity:    cfg.Topic.QueueCapacity,
		BatchSize:        cfg.Topic.BatchSize,
		BatchTimeout:     cfg.Topic.BatchTimeout,
		SendTimeout:      cfg.Topic.SendTimeout,
		MetricsSampleCap: cfg.Topic.MetricsSampleCap,
	}
	reg := registry.New(topicCfg, logger)

	promRegistry := metrics.NewRegistry()
	reg.SetMetrics(promRegistry)

	sampler, err := sysmetrics.New()
	if err != nil {
		logger.Warn("system metrics sampler unavailable", zap.Error(err))
		sampler = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sampler != nil {
		go sampler.Run(ctx, cfg.Control.SystemSampleEvery)
	}
	go refreshAmbientMetrics(ctx, reg, promRegistry, cfg.Control.SystemSampleEvery)

	transportServer := transport.NewServer(cfg, logger, reg, promRegistry)
	if err := transportServer.Start(ctx); err != nil {
		logger.Fatal("transport start failed", zap.Error(err))
	}

	controlServer := control.NewServer(cfg.Control.ListenAddr, reg, logger, sampler, promRegistry)
	controlServer.Start()
	logger.Info("control server listening", zap.String("addr", cfg.Control.ListenAddr))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Reject new topic create/delete requests and stop the transport.
	// The signal context has already ended every session's write loop,
	// so Stop closes each open connection and waits for it; frames still
	// queued for a session are not written. The shutdown grace then
	// elapses before the topics are torn down.
	controlServer.BeginShutdown()
	transportServer.Stop()
	time.Sleep(cfg.Control.ShutdownGrace)

	reg.ShutdownAll()
	logger.Info("all topics shut down")

	if err := controlServer.Stop(); err != nil {
		logger.Warn("control server shutdown error", zap.Error(err))
	}

	os.Exit(0)
}

func refreshAmbientMetrics(ctx context.Context, reg *registry.Registry, promRegistry *metrics.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			topics := reg.List()
			promRegistry.Refresh(metrics.Sample{
				Topics:      len(topics),
				Subscribers: reg.ActiveSubscriberCount(),
			})
		}
	}
}
