package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

const openMaxElapsed = 2 * time.Minute

// Client реализует domain.ChatClient поверх сессии discordgo.
type Client struct {
	session *discordgo.Session
	send    sendFunc
	log     zerolog.Logger
}

type sendFunc func(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)

var _ domain.ChatClient = (*Client)(nil)

// New создаёт клиента. timeout ограничивает каждый REST-запрос.
func New(token string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: timeout}
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	c := &Client{session: session, send: session.ChannelMessageSend, log: logger.With().Str("component", "discord").Logger()}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.log.Info().Str("user", r.User.String()).Int("guilds", len(r.Guilds)).Msg("бот подключён к Discord")
	})
	return c, nil
}

// Session возвращает сессию для регистрации обработчиков.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Open подключается к шлюзу Discord с экспоненциальными повторами.
func (c *Client) Open(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = openMaxElapsed
	return backoff.RetryNotify(c.session.Open, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("не удалось подключиться к Discord")
	})
}

// Close закрывает соединение со шлюзом.
func (c *Client) Close() error {
	return c.session.Close()
}

// CachedChannel ищет канал в состоянии сессии.
func (c *Client) CachedChannel(channelID string) (domain.ChannelRef, bool) {
	if c.session.State == nil {
		return domain.ChannelRef{}, false
	}
	ch, err := c.session.State.Channel(channelID)
	if err != nil || ch == nil {
		return domain.ChannelRef{}, false
	}
	return domain.ChannelRef{ID: ch.ID, Name: ch.Name}, true
}

// FetchChannel запрашивает канал через REST API.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (domain.ChannelRef, error) {
	start := time.Now()
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "channel", channelID, start, err)
	if err != nil {
		return domain.ChannelRef{}, err
	}
	return domain.ChannelRef{ID: ch.ID, Name: ch.Name}, nil
}

// SendMessage отправляет текст, при необходимости несколькими сообщениями.
// Возвращается ссылка на последнее доставленное. Ошибка возвращается, только если
// не доставлено ни одной части.
func (c *Client) SendMessage(ctx context.Context, channel domain.ChannelRef, text string) (domain.MessageRef, error) {
	parts := SplitMessage(text)
	if len(parts) == 0 {
		return domain.MessageRef{}, &domain.SendError{Err: errors.New("empty message")}
	}
	var last *discordgo.Message
	for i, part := range parts {
		start := time.Now()
		msg, err := c.send(channel.ID, part, discordgo.WithContext(ctx))
		metrics.ObserveNetworkRequest("discord", "send", channel.ID, start, err)
		if err != nil {
			if last == nil {
				return domain.MessageRef{}, &domain.SendError{Forbidden: isForbidden(err), Err: err}
			}
			// Часть уже в канале: повтор отправил бы её второй раз.
			c.log.Warn().Err(err).Int("sent", i).Int("parts", len(parts)).Msg("сообщение отправлено не полностью")
			break
		}
		last = msg
	}
	return domain.MessageRef{ChannelID: last.ChannelID, MessageID: last.ID}, nil
}

// AddReaction ставит эмодзи на сообщение.
func (c *Client) AddReaction(ctx context.Context, msg domain.MessageRef, emoji string) error {
	start := time.Now()
	err := c.session.MessageReactionAdd(msg.ChannelID, msg.MessageID, emoji, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "react", msg.ChannelID, start, err)
	return err
}

func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeMissingPermissions {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden
}
