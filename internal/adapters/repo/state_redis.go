package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

// RedisState хранит дату последней публикации строкой 2006-01-02 по ключу.
type RedisState struct {
	client *redis.Client
	key    string
}

var _ domain.StateStore = (*RedisState)(nil)

// NewRedisState создаёт хранилище состояния.
func NewRedisState(client *redis.Client, key string) *RedisState {
	return &RedisState{client: client, key: key}
}

// LastPosted возвращает сохранённую дату.
func (r *RedisState) LastPosted(ctx context.Context) (domain.Date, error) {
	start := time.Now()
	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", r.key, start, nil)
		return domain.Date{}, domain.ErrStateNotFound
	}
	metrics.ObserveNetworkRequest("redis", "get", r.key, start, err)
	if err != nil {
		return domain.Date{}, fmt.Errorf("чтение %s: %w", r.key, err)
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, fmt.Errorf("разбор %s=%q: %w", r.key, raw, err)
	}
	return date, nil
}

// MarkPosted сохраняет дату публикации без срока жизни.
func (r *RedisState) MarkPosted(ctx context.Context, date domain.Date) error {
	start := time.Now()
	err := r.client.Set(ctx, r.key, date.String(), 0).Err()
	metrics.ObserveNetworkRequest("redis", "set", r.key, start, err)
	if err != nil {
		return fmt.Errorf("запись %s: %w", r.key, err)
	}
	return nil
}
