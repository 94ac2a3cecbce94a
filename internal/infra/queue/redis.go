package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

// RedisEvents складывает события о публикации меню в Redis list.
type RedisEvents struct {
	client *redis.Client
	key    string
}

var _ domain.EventPublisher = (*RedisEvents)(nil)

// NewRedisEvents создаёт публикатор по указанному ключу.
func NewRedisEvents(client *redis.Client, key string) *RedisEvents {
	return &RedisEvents{client: client, key: key}
}

// Publish добавляет событие в начало списка.
func (q *RedisEvents) Publish(ctx context.Context, event domain.PostedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}
