package posting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
	"lunch-bot/internal/usecase/menu"
)

// MentionEveryone добавляется перед меню, когда публикация должна упомянуть всех.
const MentionEveryone = "@everyone"

const storeTimeout = 5 * time.Second

// Options задаёт параметры планировщика.
type Options struct {
	ChannelID   string
	MenuURL     string
	Location    *time.Location
	Interval    time.Duration
	TickTimeout time.Duration
	// PostAfter: смещение от полуночи, раньше которого публикация не выполняется.
	PostAfter  time.Duration
	Mention    domain.MentionMode
	AlertAfter int
}

// Deps: внешние зависимости публикации. Store, Alerter, Events и PingDays необязательны.
type Deps struct {
	Chat     domain.ChatClient
	Fetcher  domain.MenuFetcher
	Store    domain.StateStore
	Alerter  domain.Alerter
	Events   domain.EventPublisher
	PingDays PingDayPicker
}

// Status: снимок состояния планировщика для /status.
type Status struct {
	LastPosted          string `json:"last_posted,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Mention             string `json:"mention"`
	PingDay             string `json:"ping_day,omitempty"`
}

// Scheduler публикует меню не чаще раза в будний день.
type Scheduler struct {
	deps    Deps
	catalog domain.Catalog
	opts    Options
	log     zerolog.Logger
	now     func() time.Time

	// slot допускает только одно выполнение OnTick одновременно.
	slot chan struct{}

	mu         sync.RWMutex
	lastPosted *domain.Date
	failures   failureTracker
}

// NewScheduler создаёт планировщик.
func NewScheduler(deps Deps, catalog domain.Catalog, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = 2 * time.Minute
	}
	if opts.Mention == "" {
		opts.Mention = domain.MentionAlways
	}
	if deps.PingDays == nil {
		deps.PingDays = NewRandomWeekday(time.Now().UnixNano())
	}
	return &Scheduler{
		deps:     deps,
		catalog:  catalog,
		opts:     opts,
		log:      logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
		slot:     make(chan struct{}, 1),
		failures: failureTracker{threshold: opts.AlertAfter},
	}
}

// Restore загружает дату последней публикации из хранилища.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.deps.Store == nil {
		return nil
	}
	date, err := s.deps.Store.LastPosted(ctx)
	if errors.Is(err, domain.ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("загрузка состояния: %w", err)
	}
	s.mu.Lock()
	s.lastPosted = &date
	s.mu.Unlock()
	metrics.SetLastPosted(date.Time(s.opts.Location))
	s.log.Info().Str("last_posted", date.String()).Msg("состояние восстановлено")
	return nil
}

// LastPosted возвращает дату последней публикации по расписанию.
func (s *Scheduler) LastPosted() (domain.Date, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPosted == nil {
		return domain.Date{}, false
	}
	return *s.lastPosted, true
}

// Status возвращает снимок состояния на момент now.
func (s *Scheduler) Status(now time.Time) Status {
	now = now.In(s.opts.Location)
	s.mu.RLock()
	st := Status{ConsecutiveFailures: s.failures.count, Mention: string(s.opts.Mention)}
	if s.lastPosted != nil {
		st.LastPosted = s.lastPosted.String()
	}
	s.mu.RUnlock()
	if s.opts.Mention == domain.MentionWeekly {
		year, week := now.ISOWeek()
		st.PingDay = s.deps.PingDays.PingDay(year, week).String()
	}
	return st
}

// Run выполняет проверку сразу и затем с интервалом до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.opts.Interval).Str("tz", s.opts.Location.String()).Msg("планировщик запущен")
	s.tick(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("планировщик остановлен")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.opts.TickTimeout)
	defer cancel()
	s.OnTick(tickCtx, s.now())
}

// OnTick проверяет, нужно ли публиковать меню сегодня, и публикует его.
// Ошибки не возвращаются: они логируются, а следующий тик повторит попытку.
func (s *Scheduler) OnTick(ctx context.Context, now time.Time) {
	now = now.In(s.opts.Location)

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("тик пропущен: предыдущий ещё выполняется")
		return
	}
	defer func() { <-s.slot }()

	if !s.eligible(now) {
		metrics.IncTick(metrics.TickSkipped)
		return
	}

	today := domain.DateOf(now)
	log := s.log.With().Str("tick_id", uuid.NewString()).Str("date", today.String()).Logger()

	channel, err := resolveChannel(ctx, s.deps.Chat, s.opts.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", s.opts.ChannelID).Msg("канал не найден")
		s.fail(ctx, log, metrics.TickChannelError, err)
		return
	}

	m, err := s.deps.Fetcher.Fetch(ctx, s.opts.MenuURL)
	if err != nil {
		log.Error().Err(err).Str("url", s.opts.MenuURL).Msg("не удалось получить меню")
		s.fail(ctx, log, metrics.TickFetchError, err)
		return
	}

	text := menu.Format(m)
	if s.shouldMention(now) {
		text = MentionEveryone + "\n" + text
	}

	msg, err := s.deps.Chat.SendMessage(ctx, channel, text)
	if err != nil {
		var sendErr *domain.SendError
		if errors.As(err, &sendErr) && sendErr.Forbidden {
			log.Error().Err(err).Msg("у бота нет прав на отправку сообщений")
		} else {
			log.Error().Err(err).Msg("ошибка отправки меню")
		}
		s.fail(ctx, log, metrics.TickSendError, err)
		return
	}

	if err := addReactions(ctx, s.deps.Chat, msg, s.catalog); err != nil {
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("не все реакции добавлены")
	}

	s.commit(ctx, log, today)
	metrics.IncTick(metrics.TickPosted)
	log.Info().Str("message_id", msg.MessageID).Msg("меню опубликовано")
	s.succeed(ctx, log)
	publishPosted(ctx, s.deps.Events, log, domain.TriggerScheduled, today, msg, now)
}

func (s *Scheduler) eligible(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if sinceMidnight(now) < s.opts.PostAfter {
		return false
	}
	last, ok := s.LastPosted()
	return !ok || last != domain.DateOf(now)
}

func (s *Scheduler) shouldMention(now time.Time) bool {
	switch s.opts.Mention {
	case domain.MentionNever:
		return false
	case domain.MentionWeekly:
		year, week := now.ISOWeek()
		return s.deps.PingDays.PingDay(year, week) == now.Weekday()
	default:
		return true
	}
}

func (s *Scheduler) commit(ctx context.Context, log zerolog.Logger, today domain.Date) {
	s.mu.Lock()
	s.lastPosted = &today
	s.mu.Unlock()
	metrics.SetLastPosted(today.Time(s.opts.Location))

	if s.deps.Store == nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := s.deps.Store.MarkPosted(storeCtx, today); err != nil {
		log.Error().Err(err).Msg("не удалось сохранить дату публикации")
	}
}

func (s *Scheduler) fail(ctx context.Context, log zerolog.Logger, result string, cause error) {
	metrics.IncTick(result)
	s.mu.Lock()
	alert := s.failures.failure()
	count := s.failures.count
	s.mu.Unlock()
	metrics.ConsecutiveFailures.Set(float64(count))
	if !alert {
		return
	}
	text := fmt.Sprintf("Lunch menu has not been posted after %d attempts in a row: %v", count, cause)
	log.Error().Int("failures", count).Msg("меню не публикуется, отправляем оповещение")
	s.alert(ctx, log, text)
}

func (s *Scheduler) succeed(ctx context.Context, log zerolog.Logger) {
	s.mu.Lock()
	recovered := s.failures.success()
	s.mu.Unlock()
	metrics.ConsecutiveFailures.Set(0)
	if recovered > 0 {
		s.alert(ctx, log, fmt.Sprintf("Lunch menu posted again after %d failed attempts", recovered))
	}
}

func (s *Scheduler) alert(ctx context.Context, log zerolog.Logger, text string) {
	if s.deps.Alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.deps.Alerter.Alert(alertCtx, text); err != nil {
		log.Warn().Err(err).Msg("не удалось отправить оповещение")
	}
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
