package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"signage-analytics/internal/adapters/httpapi"
	"signage-analytics/internal/adapters/repo"
	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/cache"
	"signage-analytics/internal/infra/config"
	"signage-analytics/internal/infra/db"
	"signage-analytics/internal/infra/events"
	httpinfra "signage-analytics/internal/infra/http"
	applog "signage-analytics/internal/infra/log"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/infra/queue"
	"signage-analytics/internal/usecase/catalog"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/reports"
	"signage-analytics/internal/usecase/schedule"
	"signage-analytics/internal/usecase/window"
	"signage-analytics/migrations"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	loc := window.LoadLocation(cfg.TZ)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: no database connection")
	}
	defer pool.Close()

	if cfg.Postgres.Migrate {
		applied, err := db.Migrate(ctx, pool, migrations.FS)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: migrations failed")
		}
		if len(applied) > 0 {
			logger.Info().Strs("versions", applied).Msg("api: migrations applied")
		}
	}
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	var playbackQueue domain.PlaybackQueue
	q, closeQueue, err := queue.Open(cfg.Queue.Driver, cfg.Queue.Key, cfg.Queue.RabbitURL, redisClient)
	if err != nil {
		logger.Warn().Err(err).Msg("api: playback queue unavailable, async bulk ingestion disabled")
	} else {
		defer closeQueue()
		playbackQueue = q
	}

	var publisher domain.EventPublisher = events.Nop{}
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(brokers, cfg.Kafka.Topic), cfg.Kafka.Topic, events.BreakerSettings{
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
			MinRequests: cfg.Breaker.MinRequests,
			FailureRate: cfg.Breaker.FailureRate,
		}, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	handler := httpapi.New(httpapi.Deps{
		Catalog: catalog.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, applog.Component(logger, "catalog")),
		Schedules: schedule.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, loc).
			WithSnapshots(schedule.NewSnapshots(cache.NewRedis(redisClient), cfg.Scheduler.SnapshotKey, cfg.Scheduler.SnapshotTTL)),
		Playback:        playback.NewService(repoAdapter, repoAdapter, repoAdapter, publisher, repoAdapter, applog.Component(logger, "playback")),
		Reports:         reports.NewService(repoAdapter, repoAdapter, repoAdapter, window.NewResolver(loc), applog.Component(logger, "reports")),
		Queue:           playbackQueue,
		BusinessMetrics: repoAdapter,
		Location:        loc,
		Logger:          logger,
	})

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	handler.Mount(server.Router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, fmt.Sprintf(":%d", cfg.Port))
	})
	logger.Info().Int("port", cfg.Port).Str("tz", loc.String()).Msg("api: started")
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api: server stopped")
	}
	logger.Info().Msg("api: stopped")
}
