package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"healthlink/internal/apiauth"
	authmetrics "healthlink/internal/apiauth/metrics"
	"healthlink/internal/apiauth/replay"
	"healthlink/internal/health"
	"healthlink/internal/integrity"
	"healthlink/internal/platform/config"
	"healthlink/internal/platform/httpserver"
	"healthlink/internal/platform/logger"
	"healthlink/internal/platform/metrics"
	"healthlink/internal/platform/postgres"
	"healthlink/internal/platform/redis"
	relationhandler "healthlink/internal/relation/handler"
	relationmetrics "healthlink/internal/relation/metrics"
	relationservice "healthlink/internal/relation/service"
	relationstore "healthlink/internal/relation/store"
	"healthlink/internal/usage"
	usagemetrics "healthlink/internal/usage/metrics"
	usagestore "healthlink/internal/usage/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	topicTimeout    = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	platformMetrics := metrics.New()
	platformMetrics.SetBuildInfo(version, cfg.Environment)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	checkDatabase(ctx, pool, log, platformMetrics)

	authMetrics := authmetrics.New()
	guard, closeRedis := newReplayGuard(ctx, cfg.Redis, log, authMetrics, platformMetrics)
	defer closeRedis()

	publisher, closePublisher := newIntegrityPublisher(ctx, cfg.Kafka, log, platformMetrics)
	defer closePublisher()

	recorder := usage.NewRecorder(usagestore.NewPostgres(pool),
		usage.WithQueueSize(cfg.Usage.QueueSize),
		usage.WithLocation(cfg.Usage.Location),
		usage.WithWriteTimeout(cfg.Usage.WriteTimeout),
		usage.WithLogger(log),
		usage.WithMetrics(usagemetrics.New()),
	)

	svc, err := relationservice.New(relationstore.NewPostgres(pool),
		relationservice.WithUsageRecorder(recorder),
		relationservice.WithIntegrityPublisher(publisher),
		relationservice.WithMetrics(relationmetrics.New()),
		relationservice.WithLogger(log),
	)
	if err != nil {
		return err
	}

	settings := config.NewSnapshot(cfg.Auth)
	gate := apiauth.NewGate(settings, log,
		apiauth.WithReplayGuard(guard),
		apiauth.WithMetrics(authMetrics),
	)
	router := newRouter(routes{
		relation: relationhandler.New(svc, log),
		health:   health.New(pool, log),
		gate:     gate,
		logger:   log,
	})

	api := httpserver.New(cfg.Addr, router)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = httpserver.New(cfg.MetricsAddr, metrics.Router())
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recorder.Run(context.WithoutCancel(gctx))
		return nil
	})
	g.Go(func() error {
		log.Info("starting healthlink", "addr", cfg.Addr, "environment", cfg.Environment, "version", version)
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info("starting metrics listener", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		watchReload(gctx, settings, log, platformMetrics)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		// in-flight requests are done; flush what they recorded
		recorder.Close()
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newReplayGuard(ctx context.Context, cfg config.Redis, log *slog.Logger, observer *authmetrics.Metrics, pm *metrics.Metrics) (*replay.Guard, func()) {
	opts := []replay.Option{replay.WithLogger(log), replay.WithObserver(observer)}
	if cfg.URL == "" {
		return replay.New(nil, opts...), func() {}
	}

	client, err := redis.New(ctx, cfg)
	pm.SetDependencyUp("redis", err == nil)
	if err != nil {
		log.Warn("redis unavailable, replay guard starts in memory", "error", err)
		return replay.New(nil, opts...), func() {}
	}
	return replay.New(client, opts...), func() { _ = client.Close() }
}

// checkDatabase records startup reachability on the dependency gauge. An
// unreachable database does not stop the server; /health/db keeps reporting it.
func checkDatabase(ctx context.Context, db postgres.Pinger, log *slog.Logger, pm *metrics.Metrics) bool {
	pingErr := postgres.Ping(ctx, db)
	if pingErr != nil {
		log.Warn("database unreachable at startup", "error", pingErr)
	}
	pm.SetDependencyUp("postgres", pingErr == nil)
	return pingErr == nil
}

func newIntegrityPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger, pm *metrics.Metrics) (relationservice.IntegrityPublisher, func()) {
	fallback := integrity.NewLogPublisher(log)
	if len(cfg.Brokers) == 0 {
		return fallback, func() {}
	}

	kp, err := integrity.NewKafkaPublisher(cfg.Brokers, cfg.IntegrityTopic, log)
	if err != nil {
		log.Warn("kafka unavailable, integrity events are logged only", "error", err)
		pm.SetDependencyUp("kafka", false)
		return fallback, func() {}
	}

	if !brokersReady(ctx, kp, cfg.IntegrityTopic, log) {
		pm.SetDependencyUp("kafka", false)
		closeKafka(kp, log)
		return fallback, func() {}
	}
	pm.SetDependencyUp("kafka", true)
	return kp, func() { closeKafka(kp, log) }
}

// kafkaSink is the startup surface of *integrity.KafkaPublisher.
type kafkaSink interface {
	Ping(ctx context.Context) error
	EnsureTopic(ctx context.Context, partitions int32, replication int16) error
}

// brokersReady pings the brokers and provisions the integrity topic. Only an
// unreachable cluster is fatal to the Kafka sink; a failed topic creation is
// logged because brokers may auto-create it on first produce.
func brokersReady(ctx context.Context, sink kafkaSink, topic string, log *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, topicTimeout)
	defer cancel()

	if err := sink.Ping(ctx); err != nil {
		log.Warn("kafka brokers unreachable, integrity events are logged only", "error", err)
		return false
	}
	if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
		log.Warn("could not ensure integrity topic", "topic", topic, "error", err)
	}
	return true
}

func closeKafka(kp *integrity.KafkaPublisher, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := kp.Close(ctx); err != nil {
		log.Warn("kafka close failed", "error", err)
	}
}

// watchReload swaps in freshly read auth settings on SIGHUP. Settings that
// need new connections (database, redis, kafka, listeners) require a restart.
func watchReload(ctx context.Context, settings *config.Snapshot, log *slog.Logger, pm *metrics.Metrics) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Reload()
			if err != nil {
				pm.IncrementConfigReload("error")
				log.Error("config reload failed, keeping previous settings", "error", err)
				continue
			}
			settings.Store(cfg.Auth)
			pm.IncrementConfigReload("success")
			log.Info("config reloaded", "api_keys", len(cfg.Auth.APIKeys), "hmac_required", cfg.Auth.HMACRequired())
		}
	}
}
