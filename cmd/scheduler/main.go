package main

import (
	"context"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"signage-analytics/internal/adapters/repo"
	"signage-analytics/internal/infra/cache"
	"signage-analytics/internal/infra/config"
	"signage-analytics/internal/infra/db"
	applog "signage-analytics/internal/infra/log"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/usecase/schedule"
	"signage-analytics/internal/usecase/window"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	loc := window.LoadLocation(cfg.TZ)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: no database connection")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	schedulerLog := applog.Component(logger, "scheduler")
	job := &snapshotJob{
		monitor:   schedule.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, loc),
		snapshots: schedule.NewSnapshots(cache.NewRedis(redisClient), cfg.Scheduler.SnapshotKey, cfg.Scheduler.SnapshotTTL),
		log:       schedulerLog,
	}

	cronLog := cronLogger{log: schedulerLog}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(cfg.Scheduler.LiveMonitorSpec, func() { job.Run(ctx) }); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Scheduler.LiveMonitorSpec).Msg("scheduler: invalid cron spec")
	}
	c.Start()
	logger.Info().Str("spec", cfg.Scheduler.LiveMonitorSpec).Str("tz", loc.String()).Msg("scheduler: started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler: stopped")
}
