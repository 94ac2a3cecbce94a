package discord

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
)

// CommandFunc обрабатывает текстовую команду.
type CommandFunc func(ctx context.Context, r domain.Replier) error

// Router разбирает сообщения с префиксом и вызывает зарегистрированные команды.
type Router struct {
	prefix  string
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewRouter создаёт роутер команд.
func NewRouter(prefix string, timeout time.Duration, logger zerolog.Logger) *Router {
	return &Router{
		prefix:   prefix,
		timeout:  timeout,
		log:      logger.With().Str("component", "commands").Logger(),
		commands: make(map[string]CommandFunc),
	}
}

// Handle регистрирует команду по ключевому слову.
func (r *Router) Handle(name string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(name)] = fn
}

// Attach подписывает роутер на новые сообщения сессии. discordgo вызывает
// обработчик в отдельной горутине, поэтому команды не блокируют планировщик.
func (r *Router) Attach(s *discordgo.Session) func() {
	return s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		r.Dispatch(context.Background(), m.Content, &messageReplier{session: s, msg: m.Message})
	})
}

// Dispatch выполняет команду из текста сообщения. Возвращает false, если
// сообщение не является известной командой.
func (r *Router) Dispatch(ctx context.Context, content string, replier domain.Replier) bool {
	name, ok := parseCommand(r.prefix, content)
	if !ok {
		return false
	}
	r.mu.RLock()
	fn := r.commands[name]
	r.mu.RUnlock()
	if fn == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	log := r.log.With().Str("command", name).Logger()
	log.Info().Msg("команда получена")
	if err := fn(ctx, replier); err != nil {
		log.Warn().Err(err).Msg("команда завершилась с ошибкой")
	}
	return true
}

func parseCommand(prefix, content string) (string, bool) {
	text := strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

type messageReplier struct {
	session *discordgo.Session
	msg     *discordgo.Message
}

func (m *messageReplier) Reply(ctx context.Context, text string) error {
	_, err := m.session.ChannelMessageSendReply(m.msg.ChannelID, text, m.msg.Reference(), discordgo.WithContext(ctx))
	return err
}
