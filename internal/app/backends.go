package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lunch-bot/internal/adapters/alert"
	"lunch-bot/internal/adapters/repo"
	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/cache"
	"lunch-bot/internal/infra/config"
	"lunch-bot/internal/infra/db"
	"lunch-bot/internal/infra/queue"
)

// Backends: необязательные внешние хранилища и каналы, выбранные конфигом.
// Нулевые поля означают, что бэкенд не настроен.
type Backends struct {
	Store   domain.StateStore
	Events  domain.EventPublisher
	Alerter domain.Alerter

	redis  *redis.Client
	pool   *pgxpool.Pool
	rabbit *queue.RabbitEvents
}

// OpenState подключает только хранилище состояния.
func OpenState(ctx context.Context, cfg config.AppConfig) (*Backends, error) {
	b := &Backends{}
	if err := b.openState(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// OpenEvents подключает только публикацию событий.
func OpenEvents(ctx context.Context, cfg config.AppConfig) (*Backends, error) {
	b := &Backends{}
	if err := b.openEvents(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// Open подключает хранилище состояния, публикацию событий и оповещения.
func Open(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Backends, error) {
	b, err := OpenState(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := b.openEvents(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}

	b.Alerter = alert.NewLog(logger)
	if cfg.Alerts.TelegramToken != "" {
		tg, err := alert.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("telegram alerts: %w", err)
		}
		b.Alerter = tg
	}
	return b, nil
}

func (b *Backends) openState(ctx context.Context, cfg config.AppConfig) error {
	switch cfg.State.Backend {
	case config.StateRedis:
		client, err := b.redisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		b.Store = repo.NewRedisState(client, cfg.State.RedisKey)
	case config.StatePostgres:
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		b.pool = pool
		state := repo.NewPostgresState(pool)
		if err := state.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		b.Store = state
	}
	return nil
}

func (b *Backends) openEvents(ctx context.Context, cfg config.AppConfig) error {
	switch cfg.Events.Backend {
	case config.EventsRedis:
		client, err := b.redisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		b.Events = queue.NewRedisEvents(client, cfg.Events.RedisKey)
	case config.EventsRabbitMQ:
		rabbit, err := queue.NewRabbitEvents(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		b.rabbit = rabbit
		b.Events = rabbit
	}
	return nil
}

func (b *Backends) redisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := cache.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	b.redis = client
	return client, nil
}

// Close закрывает все открытые соединения.
func (b *Backends) Close() error {
	var result *multierror.Error
	if b.rabbit != nil {
		result = multierror.Append(result, b.rabbit.Close())
	}
	if b.redis != nil {
		result = multierror.Append(result, b.redis.Close())
	}
	if b.pool != nil {
		b.pool.Close()
	}
	return result.ErrorOrNil()
}
