package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("QUEUE_DRIVER", "rabbitmq")

	cfg := Load()
	if cfg.Queue.Driver != "rabbitmq" || cfg.Queue.JobTTL != 24*time.Hour {
		t.Fatalf("unexpected queue config: %+v", cfg.Queue)
	}
	if cfg.Scheduler.LiveMonitorSpec != "@every 1m" || cfg.Breaker.FailureRate != 0.6 {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Scheduler, cfg.Breaker)
	}
	brokers := cfg.KafkaBrokers()
	if len(brokers) != 2 || brokers[0] != "k1:9092" || brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", brokers)
	}
}
