package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/api"
	"github.com/Kerhoff/custos/internal/config"
	"github.com/Kerhoff/custos/internal/handlers"
	"github.com/Kerhoff/custos/internal/moderation"
	"github.com/Kerhoff/custos/internal/repository"
	"github.com/Kerhoff/custos/internal/repository/memory"
	"github.com/Kerhoff/custos/internal/repository/postgres"
	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
	"github.com/Kerhoff/custos/pkg/logger"
)

type repositories struct {
	users    repository.UserRepository
	chats    repository.ChatRepository
	members  repository.MemberRepository
	warnings repository.WarningRepository
	ping     func(ctx context.Context) error
	close    func() error
}

func openRepositories(cfg *config.Config, l *logrus.Logger) (*repositories, error) {
	if cfg.UsesMemoryStore() {
		l.Warn("DATABASE_URL is not set, using the in-memory store. Ranks and warnings are lost on restart.")
		store := memory.New()
		return &repositories{
			users:    store.Users(),
			chats:    store.Chats(),
			members:  store.Members(),
			warnings: store.Warnings(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	return &repositories{
		users:    postgres.NewUserRepository(db.DB),
		chats:    postgres.NewChatRepository(db.DB),
		members:  postgres.NewMemberRepository(db.DB),
		warnings: postgres.NewWarningRepository(db.DB),
		ping:     db.PingContext,
		close:    db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting Custos...")

	repos, err := openRepositories(cfg, l)
	if err != nil {
		l.Fatalf("Failed to open storage: %v", err)
	}
	defer repos.close()

	// Service layer
	svc := service.New(l, repos.users, repos.chats, repos.members, repos.warnings)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := moderation.NewMetrics(registry)

	// Moderation core
	platform := bot.Platform(cfg.ResolverTimeout)
	policy := moderation.Policy{AutobanThreshold: cfg.AutobanWarnings}
	engine := moderation.NewEngine(moderation.Dependencies{
		Resolver: moderation.NewResolver(platform, repos.members, cfg.ResolverTimeout, l, metrics),
		Limiter: moderation.NewRateLimiter(map[moderation.Command]time.Duration{
			moderation.CommandWarn: cfg.WarnCooldown,
			moderation.CommandKick: cfg.KickCooldown,
		}, nil),
		Transfers: moderation.NewTransferTable(cfg.TransferTTL, nil),
		Ranks:     repos.members,
		Warnings:  repos.warnings,
		Platform:  platform,
		Policy:    policy,
		Metrics:   metrics,
		Logger:    l,
	})

	// Register command handlers
	bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(policy.Threshold(), l))

	// Moderation handlers
	bot.RegisterCommand("ban", handlers.NewPunishHandler(moderation.CommandBan, engine, svc, l))
	bot.RegisterCommand("kick", handlers.NewPunishHandler(moderation.CommandKick, engine, svc, l))
	bot.RegisterCommand("warn", handlers.NewPunishHandler(moderation.CommandWarn, engine, svc, l))
	bot.RegisterCommand("upstaff", handlers.NewUpstaffHandler(engine, svc, l))
	bot.RegisterCommand("staff", handlers.NewStaffHandler(svc, l))
	bot.RegisterCallback(handlers.TransferConfirmPrefix, handlers.NewTransferConfirmHandler(engine, svc, l))
	bot.RegisterCallback(handlers.TransferCancelPrefix, handlers.NewTransferCancelHandler(engine, l))

	// Profile handlers
	bot.RegisterCommand("me", handlers.NewMeHandler(svc, l))
	bot.RegisterCommand("you", handlers.NewYouHandler(svc, l))
	bot.RegisterCommand("nickname", handlers.NewNicknameHandler(svc, l))
	bot.RegisterCommand("description", handlers.NewDescriptionHandler(svc, l))
	bot.RegisterCommand("stats", handlers.NewStatsHandler(svc, l))
	bot.RegisterCommand("mychats", handlers.NewMyChatsHandler(svc, l))

	bot.OnMessage(handlers.NewActivityTracker(svc, l).Observe)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go svc.StartSweeper(ctx, service.DefaultSweepInterval, engine.Sweep)

	// HTTP read API
	apiServer := api.NewServer(svc, l, api.Options{RPS: cfg.APIRPS, Burst: cfg.APIBurst, Ping: repos.ping})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           api.MetricsHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	for _, srv := range []*http.Server{httpServer, metricsServer} {
		go func(srv *http.Server) {
			l.Infof("HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("HTTP server error: %v", err)
			}
		}(srv)
	}

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
			cancel()
		}
	}()

	l.WithField("bot", bot.Username()).Info("Custos started successfully")

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.WithError(err).Warn("HTTP server shutdown")
		}
	}

	l.Info("Custos stopped")
}

// compile-time checks that the adapters satisfy the moderation ports
var (
	_ moderation.MembershipQuerier = (*telegram.Platform)(nil)
	_ moderation.Punisher          = (*telegram.Platform)(nil)
	_ telegram.Sender              = (*tgbotapi.BotAPI)(nil)
	_ telegram.ChatMemberAPI       = (*tgbotapi.BotAPI)(nil)
)
