package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig describes the configuration shared by all binaries.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Kolkata"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Postgres struct {
		DSN      string `envconfig:"PG_DSN"`
		MaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`
		Migrate  bool   `envconfig:"PG_MIGRATE" default:"true"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	Queue struct {
		// Driver is "redis" or "rabbitmq".
		Driver      string        `envconfig:"QUEUE_DRIVER" default:"redis"`
		Key         string        `envconfig:"PLAYBACK_QUEUE_KEY" default:"playback_batches"`
		RabbitURL   string        `envconfig:"RABBITMQ_URL"`
		JobTTL      time.Duration `envconfig:"PLAYBACK_JOB_TTL" default:"24h"`
		Concurrency int           `envconfig:"INGESTOR_CONCURRENCY" default:"4"`
	} `envconfig:""`

	Kafka struct {
		Brokers string `envconfig:"KAFKA_BROKERS"`
		Topic   string `envconfig:"KAFKA_PLAYBACK_TOPIC" default:"playback.recorded"`
	} `envconfig:""`

	Breaker struct {
		MaxRequests uint32        `envconfig:"BREAKER_MAX_REQUESTS" default:"3"`
		Interval    time.Duration `envconfig:"BREAKER_INTERVAL" default:"1m"`
		Timeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
		MinRequests uint32        `envconfig:"BREAKER_MIN_REQUESTS" default:"10"`
		FailureRate float64       `envconfig:"BREAKER_FAILURE_RATE" default:"0.6"`
	} `envconfig:""`

	Scheduler struct {
		LiveMonitorSpec string        `envconfig:"LIVE_MONITOR_CRON" default:"@every 1m"`
		SnapshotKey     string        `envconfig:"LIVE_MONITOR_KEY" default:"live_monitor:snapshot"`
		SnapshotTTL     time.Duration `envconfig:"LIVE_MONITOR_TTL" default:"5m"`
	} `envconfig:""`
}

// KafkaBrokers splits the comma separated broker list.
func (c AppConfig) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Load reads the configuration from the environment.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
