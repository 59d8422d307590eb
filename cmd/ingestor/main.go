package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"signage-analytics/internal/adapters/repo"
	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/cache"
	"signage-analytics/internal/infra/config"
	"signage-analytics/internal/infra/db"
	"signage-analytics/internal/infra/events"
	applog "signage-analytics/internal/infra/log"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/infra/queue"
	"signage-analytics/internal/usecase/playback"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run returns once every worker has stopped. Deferred cleanup runs before main
// decides the exit status.
func run() error {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingestor: no database connection")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	playbackQueue, closeQueue, err := queue.Open(cfg.Queue.Driver, cfg.Queue.Key, cfg.Queue.RabbitURL, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingestor: failed to open playback queue")
	}
	defer closeQueue()

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

	service := playback.NewService(repoAdapter, repoAdapter, repoAdapter, publisher, repoAdapter, applog.Component(logger, "playback"))
	worker := newJobWorker(applog.Component(logger, "ingestor"), playbackQueue, cache.NewRedis(redisClient), service, cfg.Queue.JobTTL)

	concurrency := cfg.Queue.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger.Info().Str("driver", cfg.Queue.Driver).Int("workers", concurrency).Msg("ingestor: consuming playback batches")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("ingestor: worker failed, shutting down")
		return err
	}
	logger.Info().Msg("ingestor: stopped")
	return nil
}
