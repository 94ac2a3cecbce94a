package alert

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

// Log пишет оповещения только в лог.
type Log struct {
	log zerolog.Logger
}

var _ domain.Alerter = (*Log)(nil)

// NewLog создаёт алертер без внешней доставки.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{log: logger.With().Str("component", "alert").Logger()}
}

// Alert пишет текст оповещения с уровнем error.
func (l *Log) Alert(_ context.Context, text string) error {
	l.log.Error().Str("alert", text).Msg("оповещение")
	return nil
}

// sendTimeout ограничивает каждый запрос к Bot API, чтобы зависший запрос не
// оставлял горутину после отмены ctx.
const sendTimeout = 10 * time.Second

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет оповещения в чат операторов через Bot API.
type Telegram struct {
	bot    sender
	chatID int64
	log    *Log
}

var _ domain.Alerter = (*Telegram)(nil)

// NewTelegram создаёт алертер. Бот проверяет токен при создании.
func NewTelegram(token string, chatID int64, logger zerolog.Logger) (*Telegram, error) {
	return newTelegram(token, tgbotapi.APIEndpoint, chatID, sendTimeout, logger)
}

func newTelegram(token, endpoint string, chatID int64, timeout time.Duration, logger zerolog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID, log: NewLog(logger)}, nil
}

// Alert пишет оповещение в лог и отправляет его в Telegram.
func (t *Telegram) Alert(ctx context.Context, text string) error {
	_ = t.log.Alert(ctx, text)

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			metrics.BotSendErrors.Inc()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
