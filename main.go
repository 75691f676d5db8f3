package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/bot"
	"afterschool-toast/config"
	"afterschool-toast/internal/handlers"
	"afterschool-toast/internal/logger"
	"afterschool-toast/internal/repository"
	"afterschool-toast/internal/seed"
	"afterschool-toast/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zlog.Info("shutdown signal received")
		cancel()
	}()

	kv, err := repository.OpenKV(ctx, cfg.Store, zlog)
	if err != nil {
		zlog.Fatal("failed to open store", zap.Error(err))
	}
	defer kv.Close()

	service, err := initApplication(ctx, cfg, kv, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize roster", zap.Error(err))
	}

	if err := initBot(ctx, cfg, service, zlog); err != nil {
		zlog.Warn("telegram bot disabled", zap.Error(err))
	}

	zlog.Info("roster running", zap.String("backend", cfg.Store.Backend), zap.Bool("locking", cfg.Store.Locking))
	<-ctx.Done()
	zlog.Info("roster stopped")
}

// initApplication prepares the store and the roster service
func initApplication(ctx context.Context, cfg *config.Config, kv repository.KVStore, zlog *zap.Logger) (*services.RosterService, error) {
	store := repository.NewRosterStore(kv, seed.Default(), repository.StoreOptions(cfg.Store, zlog)...)

	if cfg.DevReset {
		zlog.Warn("dev reset enabled, wiping the roster")
		if err := store.Reset(ctx); err != nil {
			return nil, err
		}
	} else if err := store.InitializeAll(ctx); err != nil {
		return nil, err
	}

	return services.NewRosterService(store, bot.NewNotifier(), zlog), nil
}

var errNoBotToken = errors.New("ROSTER_TELEGRAM_BOT_TOKEN is not set")

// initBot initializes the Telegram bot
func initBot(ctx context.Context, cfg *config.Config, service *services.RosterService, zlog *zap.Logger) error {
	if cfg.Telegram.BotToken == "" {
		return errNoBotToken
	}
	handler := handlers.NewCommandHandler(service, zlog)
	if err := bot.Init(cfg.Telegram.BotToken, cfg.Telegram.ChatID, handler, zlog); err != nil {
		return err
	}
	bot.StartPolling(ctx)

	zlog.Info("telegram bot initialized")
	return nil
}
