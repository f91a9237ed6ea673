package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bedlam520/hype-bridge/internal/api"
	"github.com/bedlam520/hype-bridge/internal/biz/domain"
	"github.com/bedlam520/hype-bridge/internal/biz/usecase"
	"github.com/bedlam520/hype-bridge/internal/conf"
	"github.com/bedlam520/hype-bridge/internal/data"
	"github.com/bedlam520/hype-bridge/internal/infra/feishu"
	"github.com/bedlam520/hype-bridge/internal/server"
	"github.com/bedlam520/hype-bridge/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file
	if err := conf.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	// Load configuration
	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Logger(os.Stderr)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	slots, _ := cfg.Slots()
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, cfg.DataOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repositories")
	}
	log.Info().
		Str("path", cfg.State.File).
		Str("backend", data.ResolveBackend(cfg.State.Backend, cfg.State.File)).
		Msg("State store opened")

	// Initialize usecase layer
	defaults := usecase.NewDefaults(cfg.EngineDefaults(), cfg.Feishu.BotHandle)
	if defaults.BotHandle() == "" {
		bot, err := feishuClient.FetchBotInfo(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch bot info, mention replies disabled")
		} else {
			defaults.SetBotHandle(bot.AppName)
		}
	}
	log.Info().Str("handle", defaults.BotHandle()).Msg("Bot handle")

	content := usecase.NewContentStore(repos.Content, domain.SlotNames(slots), log)
	if err := content.ReloadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Using built-in content")
	}

	store := usecase.NewChatStateStore(repos.State, time.Now, log)
	if err := store.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore chat state")
	}

	rng := usecase.NewRandom(cfg.Engine.RandomSeed)
	sender := usecase.NewSender(repos.Message, cfg.Engine.SendTimeout, log)
	replyUC := usecase.NewReplyUsecase(store, content, defaults, sender, rng, time.Now, log)

	// Initialize service layer
	idle := service.NewIdleMonitor(store, content, defaults, sender, rng, time.Now, cfg.Engine.IdleTick, log)
	broadcast := service.NewBroadcastDriver(store, content, sender, repos.State, rng, time.Now, service.BroadcastConfig{
		Slots:    slots,
		Location: loc,
		Window:   cfg.Schedule.Window,
		Interval: cfg.Schedule.Tick,
	}, log)
	if err := broadcast.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to restore broadcast ledger")
	}
	commands := service.NewCommandService(store, content, defaults, replyUC, sender, time.Now, log)
	chatSvc := service.NewChatService(replyUC, commands, log)

	idle.Start(ctx)
	broadcast.Start(ctx)

	// Initialize HTTP admin API
	var apiServer *api.Server
	if cfg.API.Addr != "" {
		apiServer = api.NewServer(store, content, defaults, replyUC, broadcast, time.Now, cfg.API.Addr, log)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error().Err(err).Msg("API server error")
			}
		}()
	}

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, chatSvc, defaults.BotHandle, time.Now, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	log.Info().Msg("Starting hype bridge")
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Feishu connection stopped")
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	idle.Stop()
	broadcast.Stop()
	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("API server shutdown")
		}
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush chat state")
	}
	if err := repos.State.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close state store")
	}
}
