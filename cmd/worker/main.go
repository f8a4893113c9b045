// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch-service/internal/config"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/worker"
)

const (
	reapInterval   = 30 * time.Second
	reapMaxPerLane = 100
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorker(os.Getenv("DISPATCH_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrapf(err, "redis %s", cfg.Redis.Addr)
	}

	deliverer, err := newDeliverer(ctx, cfg.Notify, log)
	if err != nil {
		return err
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		sink = metrics.NewPrometheusSink(reg, log)
		srv := serveMetrics(cfg.Metrics.WorkerAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	queue := notify.NewRedisQueue(rdb, notify.KeysFrom(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey))

	// return events left in processing by a crashed or restarted worker
	go worker.RunReaper(ctx, queue, reapInterval, reapMaxPerLane, sink, log)

	processor := worker.NewProcessor(queue, deliverer, sink, log, cfg.Notify.Timeout)
	pool := worker.NewPool(queue, processor, cfg.Notify.Workers, log)

	log.Info("worker started",
		zap.Int("workers", cfg.Notify.Workers),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("queue_key", cfg.Redis.QueueKey),
		zap.String("processing_key", cfg.Redis.ProcessingKey),
		zap.String("sink", cfg.Notify.Sink),
	)
	pool.Run(ctx)
	return nil
}

func newDeliverer(ctx context.Context, cfg config.NotifyConfig, log *zap.Logger) (notify.Deliverer, error) {
	if cfg.Sink != config.SinkSNS {
		return notify.NewLogDeliverer(log), nil
	}
	client, err := notify.NewSNSClient(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return notify.NewSNSDeliverer(client, cfg.SNSTopicARN), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
