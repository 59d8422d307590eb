package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

// RabbitPlaybackQueue is a playback batch queue on a durable RabbitMQ queue.
type RabbitPlaybackQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.PlaybackQueue = (*RabbitPlaybackQueue)(nil)

// NewRabbitPlaybackQueue dials url and declares the durable queue.
func NewRabbitPlaybackQueue(url, queue string) (*RabbitPlaybackQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	start := time.Now()
	conn, err := amqp.Dial(url)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", queue, start, err)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPlaybackQueue{conn: conn, queue: queue, publishCh: ch}, nil
}

// Enqueue publishes a persistent message with the job.
func (q *RabbitPlaybackQueue) Enqueue(ctx context.Context, job domain.PlaybackBatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *RabbitPlaybackQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh, q.deliveries = ch, deliveries
	return deliveries, nil
}

// Receive waits for the next delivery. Acks are manual; a negative ack requeues.
func (q *RabbitPlaybackQueue) Receive(ctx context.Context) (domain.PlaybackBatchJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.PlaybackBatchJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.PlaybackBatchJob{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.PlaybackBatchJob{}, nil, errors.New("rabbitmq: delivery channel closed")
		}
		var job domain.PlaybackBatchJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Reject(false)
			return domain.PlaybackBatchJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ack(d), nil
	}
}

func (q *RabbitPlaybackQueue) ack(d amqp.Delivery) domain.AckFunc {
	return func(success bool) error {
		start := time.Now()
		var err error
		if success {
			err = d.Ack(false)
		} else {
			err = d.Nack(false, true)
		}
		metrics.ObserveNetworkRequest("rabbitmq", "ack", q.queue, start, err)
		return err
	}
}

// Close shuts the channels and the connection down.
func (q *RabbitPlaybackQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeCh != nil {
		_ = q.consumeCh.Close()
	}
	if q.publishCh != nil {
		_ = q.publishCh.Close()
	}
	return q.conn.Close()
}
