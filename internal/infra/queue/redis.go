package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

// Redelivery backoff of negatively acknowledged jobs.
const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = time.Minute
	promoteBatch   = 100
)

// promoteScript moves due jobs from the delayed set back to the queue head.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
  redis.call('ZREM', KEYS[1], job)
  redis.call('RPUSH', KEYS[2], job)
end
return #due
`)

// RedisPlaybackQueue is a playback batch queue on Redis lists.
// Jobs in flight are parked in a processing list until acknowledged. A negative
// ack parks the job in a sorted set keyed by its due time, with the delay
// doubling on every redelivery of the same job id.
type RedisPlaybackQueue struct {
	client     *redis.Client
	key        string
	processing string
	delayed    string
	retries    string
	baseDelay  time.Duration
	now        func() time.Time
}

var _ domain.PlaybackQueue = (*RedisPlaybackQueue)(nil)

// NewRedisPlaybackQueue creates the queue under key.
func NewRedisPlaybackQueue(client *redis.Client, key string) *RedisPlaybackQueue {
	return &RedisPlaybackQueue{
		client:     client,
		key:        key,
		processing: key + ":processing",
		delayed:    key + ":delayed",
		retries:    key + ":retries",
		baseDelay:  retryBaseDelay,
		now:        time.Now,
	}
}

// retryDelay is base doubled per earlier redelivery, capped at retryMaxDelay.
func retryDelay(base time.Duration, redelivery int64) time.Duration {
	d := base
	for i := int64(1); i < redelivery && d < retryMaxDelay; i++ {
		d *= 2
	}
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	return d
}

// promote requeues delayed jobs whose due time has passed.
func (q *RedisPlaybackQueue) promote(ctx context.Context) error {
	start := time.Now()
	err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.key}, q.now().UnixMilli(), promoteBatch).Err()
	metrics.ObserveNetworkRequest("redis", "promote", q.key, start, err)
	return err
}

// Enqueue pushes a job.
func (q *RedisPlaybackQueue) Enqueue(ctx context.Context, job domain.PlaybackBatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive blocks until a job is available. The returned ack removes the job
// from the processing list; a negative ack delays it before redelivery.
func (q *RedisPlaybackQueue) Receive(ctx context.Context) (domain.PlaybackBatchJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.PlaybackBatchJob{}, nil, err
		}
		if err := q.promote(ctx); err != nil && ctx.Err() == nil {
			return domain.PlaybackBatchJob{}, nil, fmt.Errorf("promote delayed jobs: %w", err)
		}

		start := time.Now()
		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.PlaybackBatchJob{}, nil, ctx.Err()
				}
				continue
			}
			metrics.ObserveNetworkRequest("redis", "blmove", q.key, start, err)
			return domain.PlaybackBatchJob{}, nil, err
		}
		metrics.ObserveNetworkRequest("redis", "blmove", q.key, start, nil)

		var job domain.PlaybackBatchJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Undecodable payloads are dropped so they cannot block the queue.
			_ = q.client.LRem(context.Background(), q.processing, 1, raw).Err()
			return domain.PlaybackBatchJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ack(job.ID, raw), nil
	}
}

func (q *RedisPlaybackQueue) ack(id, raw string) domain.AckFunc {
	return func(success bool) error {
		ctx := context.Background()
		start := time.Now()
		if success {
			_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LRem(ctx, q.processing, 1, raw)
				pipe.HDel(ctx, q.retries, id)
				return nil
			})
			metrics.ObserveNetworkRequest("redis", "ack", q.key, start, err)
			return err
		}

		redelivery, err := q.client.HIncrBy(ctx, q.retries, id, 1).Result()
		if err != nil {
			metrics.ObserveNetworkRequest("redis", "nack", q.key, start, err)
			return err
		}
		due := q.now().Add(retryDelay(q.baseDelay, redelivery))
		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processing, 1, raw)
			pipe.ZAdd(ctx, q.delayed, redis.Z{Score: float64(due.UnixMilli()), Member: raw})
			return nil
		})
		metrics.ObserveNetworkRequest("redis", "nack", q.key, start, err)
		return err
	}
}
