package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reloop/internal/activity/geo"
	activityhandler "reloop/internal/activity/handler"
	"reloop/internal/activity/interceptor"
	activitymetrics "reloop/internal/activity/metrics"
	"reloop/internal/activity/recorder"
	activityservice "reloop/internal/activity/service"
	activitystore "reloop/internal/activity/store"
	jwttoken "reloop/internal/jwt_token"
	"reloop/internal/platform/config"
	"reloop/internal/platform/database"
	"reloop/internal/platform/health"
	"reloop/internal/platform/kafka"
	"reloop/internal/platform/kafka/producer"
	platformredis "reloop/internal/platform/redis"
	"reloop/internal/platform/upstream"
	"reloop/internal/security/detector"
	securitymetrics "reloop/internal/security/metrics"
	"reloop/internal/security/notifier"
	securityservice "reloop/internal/security/service"
	securitystore "reloop/internal/security/store"
	"reloop/migrations"
	"reloop/pkg/platform/middleware/metadata"
	"reloop/pkg/platform/middleware/request"
	"reloop/pkg/platform/tracer"
)

const poolStatsInterval = 15 * time.Second

// app owns every long-lived component. Shutdown releases them in reverse start order:
// the recorder drains first so queued records still reach the stores and the notifier.
type app struct {
	router   http.Handler
	recorder *recorder.Recorder
	closers  []namedCloser
	logger   *slog.Logger
}

type namedCloser struct {
	name  string
	close func(context.Context) error
}

func (a *app) onShutdown(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// newApp wires the pipeline from configuration. Optional infrastructure (PostgreSQL,
// Redis, Kafka, geolocation, upstream) is only started when configured.
func newApp(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.shutdown(context.Background())
		}
	}()

	activityMetrics := activitymetrics.NewWithRegistry(reg)
	securityMetrics := securitymetrics.NewWithRegistry(reg)
	healthHandler := health.New(cfg.Environment)
	spans := tracer.NewOTel()

	var (
		events  activitystore.Store
		signals securitystore.Store
	)
	if cfg.Database.URL != "" {
		pool, err := database.New(database.FromServerConfig(cfg.Database))
		if err != nil {
			return nil, err
		}
		a.onShutdown("database", func(context.Context) error { return pool.Close() })
		if cfg.Database.Migrate {
			applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
			if err != nil {
				return nil, err
			}
			logger.Info("database migrations applied", "files", len(applied))
		}
		events = activitystore.NewPostgres(pool.DB())
		signals = securitystore.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("database", pool.Health)
	} else {
		logger.Warn("DATABASE_URL not set, activity and signals are kept in memory")
		events = activitystore.NewInMemory()
		signals = securitystore.NewInMemory()
	}

	locator, err := a.newLocator(ctx, cfg, reg, activityMetrics, healthHandler)
	if err != nil {
		return nil, err
	}

	detectorOpts := []detector.Option{
		detector.WithLocation(cfg.Activity.Timezone),
		detector.WithTracer(spans),
		detector.WithLogger(logger),
		detector.WithMetrics(securityMetrics),
	}
	if cfg.Activity.SerializeDetection {
		detectorOpts = append(detectorOpts, detector.WithPerUserSerialization())
	}
	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(kafka.ProducerConfig{
			Brokers:         cfg.Kafka.Brokers,
			ClientID:        cfg.Kafka.ClientID,
			Acks:            cfg.Kafka.Acks,
			Retries:         kafka.DefaultProducerConfig().Retries,
			DeliveryTimeout: kafka.DefaultProducerConfig().DeliveryTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("start kafka producer: %w", err)
		}
		a.onShutdown("kafka", func(context.Context) error { return prod.Close() })
		healthHandler.RegisterCheck("kafka", prod.Ping)
		detectorOpts = append(detectorOpts, detector.WithNotifier(
			notifier.NewKafka(prod, notifier.WithTopic(cfg.Kafka.SignalTopic)),
		))
	}
	det := detector.New(events, signals, detectorOpts...)

	a.recorder = recorder.New(events,
		recorder.WithQueueSize(cfg.Activity.QueueSize),
		recorder.WithWorkers(cfg.Activity.Workers),
		recorder.WithWriteTimeout(cfg.Activity.WriteTimeout),
		recorder.WithLocator(locator, cfg.Geo.LookupTimeout),
		recorder.WithHook(det),
		recorder.WithLogger(logger),
		recorder.WithMetrics(activityMetrics),
	)
	a.onShutdown("recorder", a.recorder.Close)

	signalService := securityservice.New(signals,
		securityservice.WithLogger(logger),
		securityservice.WithMetrics(securityMetrics),
	)
	activityService := activityservice.New(events,
		activityservice.WithSignalCounter(signalService),
		activityservice.WithExportLimit(cfg.Activity.ExportLimit),
		activityservice.WithTracer(spans),
		activityservice.WithLogger(logger),
		activityservice.WithMetrics(activityMetrics),
	)

	proxies, err := metadata.ParseTrustedProxies(cfg.Activity.TrustedProxies)
	if err != nil {
		return nil, err
	}
	var proxy http.Handler
	if cfg.UpstreamURL != "" {
		if proxy, err = upstream.New(cfg.UpstreamURL, logger); err != nil {
			return nil, err
		}
	}

	a.router = newRouter(routerDeps{
		logger:      logger,
		tokens:      jwttoken.NewMiddlewareAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, 0)),
		metadata:    metadata.NewMiddleware(&metadata.Config{TrustedProxies: proxies}),
		interceptor: interceptor.New(a.recorder, interceptor.WithLogger(logger), interceptor.WithMetrics(activityMetrics)),
		activity:    activityhandler.New(activityService, signalService, logger),
		health:      healthHandler,
		httpMetrics: request.NewMetrics(reg),
		gatherer:    gatherer,
		upstream:    proxy,
	})
	return a, nil
}

func (a *app) newLocator(ctx context.Context, cfg config.Server, reg prometheus.Registerer, m *activitymetrics.Metrics, hh *health.Handler) (geo.Locator, error) {
	if cfg.Geo.LookupURL == "" {
		return geo.StaticLocator{}, nil
	}
	opts := []geo.Option{
		geo.WithTimeout(cfg.Geo.LookupTimeout),
		geo.WithLogger(a.logger),
		geo.WithResultObserver(m.IncGeoLookup),
	}

	rc, err := platformredis.New(ctx, cfg.Redis, platformredis.NewPoolMetrics(reg))
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.onShutdown("redis", func(context.Context) error { return rc.Close() })
		hh.RegisterCheck("redis", rc.Health)
		statsCtx, stop := context.WithCancel(context.Background())
		go rc.RecordPoolStatsEvery(statsCtx, poolStatsInterval)
		a.onShutdown("redis-stats", func(context.Context) error { stop(); return nil })
		opts = append(opts, geo.WithCache(geo.NewRedisCache(rc.Client), cfg.Geo.CacheTTL))
	}
	return geo.NewHTTPLocator(cfg.Geo.LookupURL, opts...), nil
}

// shutdown releases components newest first and reports every failure.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.logger.Error("shutdown step failed", "component", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
