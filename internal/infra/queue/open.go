package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"signage-analytics/internal/domain"
)

// Drivers accepted by Open.
const (
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
)

// Open builds the playback queue for driver. The returned close function
// releases the broker connection, if any.
func Open(driver, key, rabbitURL string, client *redis.Client) (domain.PlaybackQueue, func() error, error) {
	switch driver {
	case "", DriverRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("queue: redis driver needs a redis client")
		}
		return NewRedisPlaybackQueue(client, key), func() error { return nil }, nil
	case DriverRabbitMQ:
		q, err := NewRabbitPlaybackQueue(rabbitURL, key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("queue: unknown driver %q", driver)
	}
}
