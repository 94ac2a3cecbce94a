package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"lunch-bot/internal/domain"
)

// Бэкенды хранения состояния и публикации событий.
const (
	StateMemory   = "memory"
	StateRedis    = "redis"
	StatePostgres = "postgres"

	EventsNone     = "none"
	EventsRedis    = "redis"
	EventsRabbitMQ = "rabbitmq"
)

var errInvalidTimezone = errors.New("неизвестный часовой пояс")

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	TZ       string `envconfig:"TIMEZONE" default:"Europe/Oslo"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	Discord struct {
		Token         string `envconfig:"DISCORD_TOKEN" required:"true"`
		ChannelID     uint64 `envconfig:"LUNCH_CHANNEL_ID" required:"true"`
		CommandPrefix string `envconfig:"LUNCH_COMMAND_PREFIX" default:"*"`
	} `envconfig:""`

	Lunch struct {
		URL          string        `envconfig:"LUNCH_URL" required:"true"`
		Restaurants  string        `envconfig:"LUNCH_RESTAURANTS"`
		TickInterval time.Duration `envconfig:"LUNCH_TICK_INTERVAL" default:"15m"`
		TickTimeout  time.Duration `envconfig:"LUNCH_TICK_TIMEOUT" default:"2m"`
		HTTPTimeout  time.Duration `envconfig:"LUNCH_HTTP_TIMEOUT" default:"30s"`
		PostAfter    string        `envconfig:"LUNCH_POST_AFTER" default:"00:00"`
		Mention      string        `envconfig:"LUNCH_MENTION" default:"always"`
	} `envconfig:""`

	Alerts struct {
		AfterFailures  int    `envconfig:"ALERT_AFTER_FAILURES" default:"4"`
		TelegramToken  string `envconfig:"TG_BOT_TOKEN"`
		TelegramChatID int64  `envconfig:"TG_ALERT_CHAT_ID"`
	} `envconfig:""`

	State struct {
		Backend  string `envconfig:"STATE_BACKEND" default:"memory"`
		RedisKey string `envconfig:"STATE_REDIS_KEY" default:"lunch:last_posted"`
	} `envconfig:""`

	Events struct {
		Backend  string `envconfig:"EVENTS_BACKEND" default:"none"`
		RedisKey string `envconfig:"EVENTS_REDIS_KEY" default:"lunch_events"`
		AMQPURL  string `envconfig:"AMQP_URL"`
		Exchange string `envconfig:"EVENTS_EXCHANGE" default:"lunch"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// Значения ниже вычисляются при загрузке.
	Location  *time.Location     `ignored:"true"`
	Catalog   domain.Catalog     `ignored:"true"`
	PostAfter time.Duration      `ignored:"true"`
	Mention   domain.MentionMode `ignored:"true"`
}

// ChannelID возвращает идентификатор канала в виде snowflake-строки.
func (c AppConfig) ChannelID() string {
	return strconv.FormatUint(c.Discord.ChannelID, 10)
}

// Load загружает конфиг из окружения и завершает процесс при ошибке.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает окружение и проверяет значения. Все ошибки имеют тип *domain.ConfigError.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, &domain.ConfigError{Field: "env", Err: err}
	}
	if err := cfg.finalize(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) finalize() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return &domain.ConfigError{Field: "DISCORD_TOKEN", Err: errors.New("пустой токен")}
	}
	if c.Discord.ChannelID == 0 {
		return &domain.ConfigError{Field: "LUNCH_CHANNEL_ID", Err: errors.New("идентификатор канала должен быть положительным")}
	}
	if strings.TrimSpace(c.Discord.CommandPrefix) == "" {
		return &domain.ConfigError{Field: "LUNCH_COMMAND_PREFIX", Err: errors.New("пустой префикс")}
	}
	if !strings.HasPrefix(c.Lunch.URL, "http://") && !strings.HasPrefix(c.Lunch.URL, "https://") {
		return &domain.ConfigError{Field: "LUNCH_URL", Err: fmt.Errorf("ожидается http(s) URL, получено %q", c.Lunch.URL)}
	}

	tz, err := normalizeTimezone(c.TZ)
	if err != nil {
		return &domain.ConfigError{Field: "TIMEZONE", Err: fmt.Errorf("%w: %q", err, c.TZ)}
	}
	c.TZ = tz
	c.Location, _ = time.LoadLocation(tz)

	c.Catalog = domain.DefaultCatalog()
	if strings.TrimSpace(c.Lunch.Restaurants) != "" {
		catalog, err := domain.ParseCatalog(c.Lunch.Restaurants)
		if err != nil {
			return &domain.ConfigError{Field: "LUNCH_RESTAURANTS", Err: err}
		}
		c.Catalog = catalog
	}

	c.PostAfter, err = parseTimeOfDay(c.Lunch.PostAfter)
	if err != nil {
		return &domain.ConfigError{Field: "LUNCH_POST_AFTER", Err: err}
	}

	c.Mention, err = domain.ParseMentionMode(c.Lunch.Mention)
	if err != nil {
		return &domain.ConfigError{Field: "LUNCH_MENTION", Err: err}
	}

	if c.Lunch.TickInterval <= 0 {
		return &domain.ConfigError{Field: "LUNCH_TICK_INTERVAL", Err: errors.New("интервал должен быть положительным")}
	}
	if c.Lunch.TickTimeout <= 0 || c.Lunch.HTTPTimeout <= 0 {
		return &domain.ConfigError{Field: "LUNCH_TICK_TIMEOUT", Err: errors.New("таймауты должны быть положительными")}
	}
	if c.Alerts.AfterFailures < 0 {
		return &domain.ConfigError{Field: "ALERT_AFTER_FAILURES", Err: errors.New("порог не может быть отрицательным")}
	}
	if (c.Alerts.TelegramToken == "") != (c.Alerts.TelegramChatID == 0) {
		return &domain.ConfigError{Field: "TG_ALERT_CHAT_ID", Err: errors.New("TG_BOT_TOKEN и TG_ALERT_CHAT_ID задаются вместе")}
	}

	switch c.State.Backend {
	case StateMemory:
	case StateRedis:
		if c.RedisAddr == "" {
			return &domain.ConfigError{Field: "REDIS_ADDR", Err: errors.New("нужен для STATE_BACKEND=redis")}
		}
	case StatePostgres:
		if c.PGDSN == "" {
			return &domain.ConfigError{Field: "PG_DSN", Err: errors.New("нужен для STATE_BACKEND=postgres")}
		}
	default:
		return &domain.ConfigError{Field: "STATE_BACKEND", Err: fmt.Errorf("неизвестный бэкенд %q", c.State.Backend)}
	}

	switch c.Events.Backend {
	case EventsNone:
	case EventsRedis:
		if c.RedisAddr == "" {
			return &domain.ConfigError{Field: "REDIS_ADDR", Err: errors.New("нужен для EVENTS_BACKEND=redis")}
		}
	case EventsRabbitMQ:
		if c.Events.AMQPURL == "" {
			return &domain.ConfigError{Field: "AMQP_URL", Err: errors.New("нужен для EVENTS_BACKEND=rabbitmq")}
		}
	default:
		return &domain.ConfigError{Field: "EVENTS_BACKEND", Err: fmt.Errorf("неизвестный бэкенд %q", c.Events.Backend)}
	}
	return nil
}

// parseTimeOfDay разбирает время суток HH:MM в смещение от полуночи.
func parseTimeOfDay(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("ожидается HH:MM, получено %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// normalizeTimezone приводит название зоны к виду IANA: "europe/oslo" -> "Europe/Oslo".
func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", errInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	parts := strings.Split(strings.ToLower(candidate), "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", errInvalidTimezone
}
