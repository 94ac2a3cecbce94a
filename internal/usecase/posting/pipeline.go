package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

const publishTimeout = 5 * time.Second

// resolveChannel сначала смотрит в кэш клиента, затем запрашивает канал через API.
func resolveChannel(ctx context.Context, chat domain.ChatClient, channelID string) (domain.ChannelRef, error) {
	if ch, ok := chat.CachedChannel(channelID); ok {
		return ch, nil
	}
	ch, err := chat.FetchChannel(ctx, channelID)
	if err != nil {
		return domain.ChannelRef{}, &domain.ChannelResolutionError{ChannelID: channelID, Err: err}
	}
	return ch, nil
}

// addReactions ставит эмодзи каталога в порядке каталога. Ошибки отдельных
// реакций не прерывают цикл и возвращаются одним ReactionError.
func addReactions(ctx context.Context, chat domain.ChatClient, msg domain.MessageRef, catalog domain.Catalog) error {
	var result *multierror.Error
	for _, r := range catalog {
		if err := chat.AddReaction(ctx, msg, r.Emoji); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s %s: %w", r.Name, r.Emoji, err))
		}
	}
	if result == nil {
		return nil
	}
	metrics.ReactionErrors.Add(float64(len(result.Errors)))
	return &domain.ReactionError{MessageID: msg.MessageID, Err: result.ErrorOrNil()}
}

func publishPosted(ctx context.Context, events domain.EventPublisher, log zerolog.Logger, trigger domain.PostTrigger, date domain.Date, msg domain.MessageRef, postedAt time.Time) {
	metrics.IncPost(string(trigger))
	if events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	event := domain.PostedEvent{
		ID:        uuid.NewString(),
		Date:      date.String(),
		Trigger:   trigger,
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		PostedAt:  postedAt.UTC(),
	}
	if err := events.Publish(pubCtx, event); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("не удалось опубликовать событие о меню")
	}
}
