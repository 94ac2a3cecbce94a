package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lunch-bot/internal/adapters/discord"
	"lunch-bot/internal/adapters/scraper"
	"lunch-bot/internal/app"
	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/config"
	"lunch-bot/internal/infra/log"
	"lunch-bot/internal/usecase/menu"
	"lunch-bot/internal/usecase/posting"
)

// newPreviewCmd загружает меню и печатает сообщение, которое ушло бы в канал.
// Конфиг бота не требуется: достаточно URL страницы.
func newPreviewCmd() *cobra.Command {
	var (
		pageURL     string
		restaurants string
		timeout     time.Duration
	)
	c := &cobra.Command{
		Use:   "preview",
		Short: "Загрузить меню и вывести отформатированное сообщение",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pageURL == "" {
				return errors.New("укажите --url или LUNCH_URL")
			}
			catalog := domain.DefaultCatalog()
			if strings.TrimSpace(restaurants) != "" {
				parsed, err := domain.ParseCatalog(restaurants)
				if err != nil {
					return fmt.Errorf("--restaurants: %w", err)
				}
				catalog = parsed
			}
			m, err := scraper.New(catalog, timeout).Fetch(cmd.Context(), pageURL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), menu.Format(m))
			return err
		},
	}
	c.Flags().StringVar(&pageURL, "url", os.Getenv("LUNCH_URL"), "страница с меню")
	c.Flags().StringVar(&restaurants, "restaurants", os.Getenv("LUNCH_RESTAURANTS"), "каталог в формате Name=emoji;Name=emoji")
	c.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "таймаут HTTP-запроса")
	return c
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Просмотр и изменение даты последней публикации",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Показать сохранённую дату",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store domain.StateStore) error {
				date, err := store.LastPosted(cmd.Context())
				if errors.Is(err, domain.ErrStateNotFound) {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "никогда")
					return err
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), date)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set YYYY-MM-DD",
		Short: "Сохранить дату, чтобы планировщик пропустил этот день",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("ожидается YYYY-MM-DD: %w", err)
			}
			return withStore(cmd.Context(), func(store domain.StateStore) error {
				return store.MarkPosted(cmd.Context(), date)
			})
		},
	})
	return cmd
}

func withStore(ctx context.Context, fn func(domain.StateStore) error) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	backends, err := app.OpenState(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()
	if backends.Store == nil {
		return fmt.Errorf("STATE_BACKEND=%s не хранит состояние между запусками", cfg.State.Backend)
	}
	return fn(backends.Store)
}

// newPostCmd выполняет ту же ручную публикацию, что и команда в чате, с ответами в stdout.
func newPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post",
		Short: "Опубликовать меню и голосование в настроенный канал",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			logger := log.NewLogger(cfg.AppEnv)
			chat, err := discord.New(cfg.Discord.Token, cfg.Lunch.HTTPTimeout, logger)
			if err != nil {
				return err
			}
			backends, err := app.OpenEvents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backends.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Lunch.TickTimeout)
			defer cancel()
			command := newManualCommand(cfg, chat, backends.Events, logger)
			return command.Execute(ctx, writerReplier{w: cmd.OutOrStdout()})
		},
	}
}

// newManualCommand собирает ручную публикацию так же, как бот для команды в чате.
func newManualCommand(cfg config.AppConfig, chat domain.ChatClient, events domain.EventPublisher, logger zerolog.Logger) *posting.Command {
	deps := posting.Deps{
		Chat:    chat,
		Fetcher: scraper.New(cfg.Catalog, cfg.Lunch.HTTPTimeout),
		Events:  events,
	}
	opts := posting.Options{ChannelID: cfg.ChannelID(), MenuURL: cfg.Lunch.URL, Location: cfg.Location}
	return posting.NewCommand(deps, cfg.Catalog, opts, logger)
}

type writerReplier struct {
	w io.Writer
}

func (r writerReplier) Reply(_ context.Context, text string) error {
	_, err := fmt.Fprintln(r.w, text)
	return err
}
