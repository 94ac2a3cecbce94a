package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/usecase/menu"
)

// Command публикует меню по запросу пользователя, независимо от расписания.
// Состояние планировщика не читается и не меняется.
type Command struct {
	chat      domain.ChatClient
	fetcher   domain.MenuFetcher
	events    domain.EventPublisher
	catalog   domain.Catalog
	channelID string
	menuURL   string
	loc       *time.Location
	log       zerolog.Logger
	now       func() time.Time
}

// NewCommand создаёт обработчик ручной публикации.
func NewCommand(deps Deps, catalog domain.Catalog, opts Options, logger zerolog.Logger) *Command {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Command{
		chat:      deps.Chat,
		fetcher:   deps.Fetcher,
		events:    deps.Events,
		catalog:   catalog,
		channelID: opts.ChannelID,
		menuURL:   opts.MenuURL,
		loc:       loc,
		log:       logger.With().Str("component", "command").Logger(),
		now:       time.Now,
	}
}

// Execute публикует меню и отдельное сообщение для голосования. Об ошибках и
// успехе сообщает вызвавшему через r; возвращает ту же ошибку вызывающему коду.
func (c *Command) Execute(ctx context.Context, r domain.Replier) error {
	channel, err := resolveChannel(ctx, c.chat, c.channelID)
	if err != nil {
		c.log.Warn().Err(err).Msg("ручная публикация: канал не найден")
		c.reply(ctx, r, fmt.Sprintf("Configured channel with ID %s not found.", c.channelID))
		return err
	}

	m, err := c.fetcher.Fetch(ctx, c.menuURL)
	if err != nil {
		c.log.Warn().Err(err).Msg("ручная публикация: меню не получено")
		c.reply(ctx, r, fmt.Sprintf("Failed to fetch lunch menu: %v", err))
		return err
	}

	menuMsg, err := c.chat.SendMessage(ctx, channel, menu.Format(m))
	if err != nil {
		c.log.Error().Err(err).Msg("ручная публикация: меню не отправлено")
		c.reply(ctx, r, fmt.Sprintf("Failed to post lunch menu: %v", err))
		return err
	}

	poll, err := c.chat.SendMessage(ctx, channel, menu.PollPrompt)
	if err != nil {
		c.log.Error().Err(err).Msg("ручная публикация: голосование не отправлено")
		c.reply(ctx, r, fmt.Sprintf("Failed to post lunch poll: %v", err))
		return err
	}

	if err := addReactions(ctx, c.chat, poll, c.catalog); err != nil {
		c.log.Warn().Err(err).Str("message_id", poll.MessageID).Msg("не все реакции добавлены")
	}

	now := c.now().In(c.loc)
	publishPosted(ctx, c.events, c.log, domain.TriggerManual, domain.DateOf(now), menuMsg, now)
	c.log.Info().Str("message_id", menuMsg.MessageID).Msg("меню опубликовано вручную")
	c.reply(ctx, r, fmt.Sprintf("Lunch menu posted in %s!", channel.Mention()))
	return nil
}

func (c *Command) reply(ctx context.Context, r domain.Replier, text string) {
	if r == nil {
		return
	}
	if err := r.Reply(ctx, text); err != nil {
		c.log.Warn().Err(err).Msg("не удалось ответить пользователю")
	}
}
