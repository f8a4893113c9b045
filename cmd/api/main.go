// @title Dispatch Service API
// @version 1.0
// @description Multi-tenant field-service dispatch: assignments, job lifecycle, technician status and location, route sequencing and the dispatch board.
// @BasePath /
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "dispatch-service/docs"
	"dispatch-service/internal/config"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/location"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/repository/memory"
	"dispatch-service/internal/repository/postgresql"
	"dispatch-service/internal/service"
	httptransport "dispatch-service/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("DISPATCH_CONFIG"))
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
		log.Error("api stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("api stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	deps := service.Deps{Log: log}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		db := postgresql.OpenDB(pool)
		defer db.Close()

		deps.Jobs = postgresql.NewJobRepository(db)
		deps.Technicians = postgresql.NewTechnicianRepository(db)
		deps.Assignments = postgresql.NewAssignmentRepository(db)
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		store := memory.New()
		deps.Jobs, deps.Technicians, deps.Assignments = store, store, store
	}

	if rdb := connectRedis(ctx, cfg.Redis, log); rdb != nil {
		defer rdb.Close()
		deps.Tracker = location.NewRedisTracker(rdb, cfg.Redis.LocationPrefix, cfg.Redis.LocationTTL)
		deps.Notifier = notify.NewRedisQueue(rdb, notify.KeysFrom(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey))
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		deps.Metrics = metrics.NewPrometheusSink(reg, log)
		gatherer = reg
	}

	svc := service.NewDispatchService(deps, service.Options{
		Depot:          geo.LatLng{Lat: cfg.Dispatch.DepotLat, Lng: cfg.Dispatch.DepotLng},
		StaleAfter:     cfg.Dispatch.LocationStaleAfter,
		Location:       cfg.Dispatch.Location,
		LargeRouteWarn: cfg.Dispatch.LargeRouteWarn,
		NotifyTimeout:  cfg.Notify.Timeout,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.Routes(httptransport.NewHandler(svc, log), gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("timezone", cfg.Dispatch.Location.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}

// connectRedis returns nil when Redis is not configured or not reachable;
// the API then runs without live locations and logs events instead of
// queueing them.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Warn("redis.addr not set; location tracking and event queue disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable; location tracking and event queue disabled",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
