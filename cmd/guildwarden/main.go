package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/bot"
	"guildwarden/internal/caselog"
	"guildwarden/internal/command"
	"guildwarden/internal/commands"
	"guildwarden/internal/config"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/modules/points"
	"guildwarden/internal/modules/starboard"
	"guildwarden/internal/platform"
	"guildwarden/internal/resolve"
	"guildwarden/internal/storage"
	"guildwarden/internal/utils"
	"guildwarden/internal/wizard"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	configs, err := guildconfig.Load(cfg.GuildConfigPath)
	if err != nil {
		logger.Fatal("guild config load failed", zap.Error(err))
	}
	configs.AddOwners(cfg.OwnerIDs...)

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("session init failed", zap.Error(err))
	}
	transport := platform.NewDiscord(session)
	collector := platform.NewCollector()
	resolver := resolve.New(transport)
	auditLogger := audit.NewLogger(store, logger)
	cases := caselog.New(store, transport, configs, auditLogger, logger)

	pointsModule := points.New(store, points.Config{
		MinXP:      cfg.Levels.MinXP,
		MaxXP:      cfg.Levels.MaxXP,
		XPCooldown: cfg.Levels.XPCooldown(),
		TopLimit:   cfg.Levels.TopLimit,
	}, auditLogger, logger)
	giveaways := giveaway.New(store, transport, configs, giveaway.Config{
		Emoji:   cfg.Giveaway.Emoji,
		Workers: cfg.Giveaway.EligibilityWorkers,
	}, auditLogger, logger)
	stars := starboard.New(store, transport, configs, starboard.Config{Emoji: cfg.Starboard.Emoji}, auditLogger, logger)
	setup := wizard.New(transport, resolver, configs, collector, wizard.Config{
		Timeout:          cfg.Wizard.Timeout(),
		DeleteBatch:      cfg.Wizard.DeleteBatchSize,
		DeletesPerSecond: cfg.Wizard.DeletesPerSecond,
	}, auditLogger, logger)

	registry := command.NewRegistry()
	err = registry.Register(commands.All(commands.Deps{
		Transport:  transport,
		Resolver:   resolver,
		Configs:    configs,
		Store:      store,
		Moderation: moderation.New(transport, resolver, cases, moderation.NewDirectNotifier(transport), auditLogger, logger),
		Points:     pointsModule,
		Giveaways:  giveaways,
		Starboard:  stars,
		Wizard:     setup,
		Analytics:  analytics.New(store),
		Logger:     logger,
	})...)
	if err != nil {
		logger.Fatal("command registration failed", zap.Error(err))
	}
	dispatcher := command.NewDispatcher(registry, transport, configs, command.Config{
		Prefix:   cfg.Prefix,
		Cooldown: cfg.CommandCooldown(),
	}, logger)
	if cfg.ErrorWebhookURL != "" {
		id, token, err := utils.ParseWebhookURL(cfg.ErrorWebhookURL)
		if err != nil {
			logger.Fatal("invalid error webhook url", zap.Error(err))
		}
		dispatcher.WithErrorWebhook(platform.Webhook{ID: id, Name: "errors", Token: token})
	}

	router := bot.NewRouter(transport, store, configs, collector, dispatcher, pointsModule, stars, logger)
	botSvc := bot.New(cfg, logger, session, router, store, giveaways)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := botSvc.Start(runCtx); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.Int("guilds", len(configs.All())))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	<-runCtx.Done()
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
