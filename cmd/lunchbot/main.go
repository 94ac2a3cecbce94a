package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"lunch-bot/internal/adapters/discord"
	"lunch-bot/internal/adapters/scraper"
	"lunch-bot/internal/app"
	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/config"
	httpserver "lunch-bot/internal/infra/http"
	"lunch-bot/internal/infra/log"
	"lunch-bot/internal/infra/metrics"
	"lunch-bot/internal/usecase/posting"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключить бэкенды")
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn().Err(err).Msg("ошибка закрытия бэкендов")
		}
	}()

	chat, err := discord.New(cfg.Discord.Token, cfg.Lunch.HTTPTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать клиента Discord")
	}

	deps := posting.Deps{
		Chat:    chat,
		Fetcher: scraper.New(cfg.Catalog, cfg.Lunch.HTTPTimeout),
		Store:   backends.Store,
		Alerter: backends.Alerter,
		Events:  backends.Events,
	}
	opts := posting.Options{
		ChannelID:   cfg.ChannelID(),
		MenuURL:     cfg.Lunch.URL,
		Location:    cfg.Location,
		Interval:    cfg.Lunch.TickInterval,
		TickTimeout: cfg.Lunch.TickTimeout,
		PostAfter:   cfg.PostAfter,
		Mention:     cfg.Mention,
		AlertAfter:  cfg.Alerts.AfterFailures,
	}
	scheduler := posting.NewScheduler(deps, cfg.Catalog, opts, logger)
	if err := scheduler.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("состояние не восстановлено, начинаем с пустого")
	}
	command := posting.NewCommand(deps, cfg.Catalog, opts, logger)

	router := discord.NewRouter(cfg.Discord.CommandPrefix, cfg.Lunch.TickTimeout, logger)
	router.Handle("lunch", func(ctx context.Context, r domain.Replier) error {
		return command.Execute(ctx, r)
	})
	detach := router.Attach(chat.Session())
	defer detach()

	if err := chat.Open(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к Discord")
	}
	defer func() {
		if err := chat.Close(); err != nil {
			logger.Warn().Err(err).Msg("ошибка закрытия сессии Discord")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.HTTPAddr != "" {
		srv := httpserver.NewServer(registry, logger)
		srv.Router.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			httpserver.WriteJSON(w, http.StatusOK, scheduler.Status(time.Now()))
		})
		g.Go(func() error { return srv.Start(cfg.HTTPAddr) })
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info().Str("channel_id", opts.ChannelID).Str("tz", cfg.TZ).Msg("бот запущен")
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("бот остановлен с ошибкой")
		return
	}
	logger.Info().Msg("бот остановлен")
}
