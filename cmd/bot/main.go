package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/bot"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/paste"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	settingsRepo := repository.NewMemorySettingsRepository()
	if pg.Enabled() {
		settingsRepo = repository.NewSettingsRepository(pg.PoolHandle())
	}
	if redis.Enabled() {
		settingsRepo = repository.NewCachedSettingsRepository(settingsRepo, redis.Client, cfg.Redis.CacheTTL(), logger)
	}

	location, err := cfg.Ticket.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	discord := platform.NewDiscord(session)
	metrics := observability.NewMetrics()

	notifications := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), 256, logger)
	service.NewNotificationService(notifications, discord, logger, metrics, cfg.Ticket.CallTimeout()).RegisterHandlers()
	notifications.Start(2)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Platform:        discord,
		Settings:        settingsRepo,
		Uploader:        paste.NewClient(cfg.Paste.BaseURL, cfg.Paste.Timeout()),
		Dispatcher:      notifications,
		Logger:          logger,
		Metrics:         metrics,
		CallTimeout:     cfg.Ticket.CallTimeout(),
		TranscriptLimit: cfg.Ticket.TranscriptLimit,
		BulkConcurrency: cfg.Ticket.BulkConcurrency,
		Location:        location,
	})
	settingsService := service.NewSettingsService(settingsRepo, cfg.Ticket.SupportRoleID)

	ticketBot := bot.New(session, cfg.Discord, ticketService, settingsService, logger)
	if err := ticketBot.Start(ctx); err != nil {
		logger.Fatal("failed to start bot", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
			"discord":  ticketBot,
		}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Settings:       handlers.NewSettingsHandler(settingsService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	if err := ticketBot.Stop(); err != nil {
		logger.Warn("closing discord session", zap.Error(err))
	}
	notifications.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
