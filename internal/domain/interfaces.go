package domain

import (
	"context"
)

// ChannelRef: ссылка на канал чата.
type ChannelRef struct {
	ID   string
	Name string
}

// Mention возвращает упоминание канала для ответов.
func (c ChannelRef) Mention() string {
	return "<#" + c.ID + ">"
}

// MessageRef: ссылка на отправленное сообщение.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// MenuFetcher загружает и разбирает страницу меню.
type MenuFetcher interface {
	Fetch(ctx context.Context, url string) (Menu, error)
}

// ChatClient отвечает за отправку сообщений и реакций в чат.
type ChatClient interface {
	// CachedChannel ищет канал в локальном кэше клиента без сетевых запросов.
	CachedChannel(channelID string) (ChannelRef, bool)
	// FetchChannel запрашивает канал через API платформы.
	FetchChannel(ctx context.Context, channelID string) (ChannelRef, error)
	SendMessage(ctx context.Context, channel ChannelRef, text string) (MessageRef, error)
	AddReaction(ctx context.Context, msg MessageRef, emoji string) error
}

// Replier отвечает пользователю, вызвавшему команду.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// StateStore хранит дату последней публикации между перезапусками.
type StateStore interface {
	// LastPosted возвращает ErrStateNotFound, если дата ещё не сохранялась.
	LastPosted(ctx context.Context) (Date, error)
	MarkPosted(ctx context.Context, date Date) error
}

// Alerter доставляет операторские оповещения.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// EventPublisher публикует события о размещённом меню.
type EventPublisher interface {
	Publish(ctx context.Context, event PostedEvent) error
}
