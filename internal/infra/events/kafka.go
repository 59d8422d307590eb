// Package events publishes playback events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BreakerSettings tunes the circuit breaker around the writer.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailureRate float64
}

// KafkaPublisher writes one message per playback, keyed by TV id so a device's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
	cb     *gobreaker.CircuitBreaker[struct{}]
	name   string
	log    zerolog.Logger
}

var _ domain.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaWriter creates a writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaPublisher wraps writer with a circuit breaker.
func NewKafkaPublisher(writer MessageWriter, topic string, settings BreakerSettings, logger zerolog.Logger) *KafkaPublisher {
	name := "kafka-" + topic
	log := logger.With().Str("component", "events").Logger()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("events: circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &KafkaPublisher{writer: writer, cb: cb, name: name, log: log}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// PublishPlayback sends the event. Calls are rejected without touching Kafka
// while the breaker is open.
func (p *KafkaPublisher) PublishPlayback(ctx context.Context, event domain.PlaybackEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TVID, 10)),
		Value: payload,
		Time:  event.RecordedAt,
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		start := time.Now()
		err := p.writer.WriteMessages(ctx, msg)
		metrics.ObserveNetworkRequest("kafka", "write", p.name, start, err)
		return struct{}{}, err
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
	}
	return fmt.Errorf("publish playback %d: %w", event.LogID, err)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

// PublishPlayback does nothing.
func (Nop) PublishPlayback(context.Context, domain.PlaybackEvent) error { return nil }
