package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

// RoutingKey: ключ маршрутизации событий о публикации меню.
const RoutingKey = "menu.posted"

// RabbitEvents публикует события в topic exchange RabbitMQ.
type RabbitEvents struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ domain.EventPublisher = (*RabbitEvents)(nil)

// NewRabbitEvents подключается к брокеру и объявляет exchange.
func NewRabbitEvents(amqpURL, exchange string) (*RabbitEvents, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if exchange == "" {
		return nil, errors.New("exchange name is empty")
	}
	r := &RabbitEvents{url: amqpURL, exchange: exchange}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.connectLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// Publish отправляет событие; при закрытом канале переподключается один раз.
func (r *RabbitEvents) Publish(ctx context.Context, event domain.PostedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil || r.ch.IsClosed() {
		if err := r.connectLocked(); err != nil {
			return err
		}
	}
	start := time.Now()
	err = r.ch.PublishWithContext(ctx, r.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.PostedAt,
		Body:         body,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", r.exchange, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (r *RabbitEvents) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	r.ch, r.conn = nil, nil
	return errors.Join(errs...)
}

func (r *RabbitEvents) connectLocked() error {
	if r.conn == nil || r.conn.IsClosed() {
		conn, err := amqp.Dial(r.url)
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		r.conn = conn
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", r.exchange, err)
	}
	r.ch = ch
	return nil
}
