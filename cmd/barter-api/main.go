package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3/log"

	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/repository"
	"github.com/rajivgeraev/barter-api/internal/repository/memory"
	"github.com/rajivgeraev/barter-api/internal/server"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.SetLevel(server.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	var repo repository.Repository
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("⚠️ Используется хранилище в памяти, данные не сохраняются между запусками")
		repo = memory.New()
	default:
		store, err := db.Connect(ctx, cfg)
		if err != nil {
			log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
		}
		repo = store
	}
	defer repo.Close()

	// Redis необязателен: без него не работают выход из системы и лимиты
	rdb := cache.NewClient(ctx, cfg.RedisConfig)
	if rdb != nil {
		defer rdb.Close()
	}

	app := server.NewApp(cfg, repo, rdb, server.Options{AccessLog: true})

	go func() {
		<-ctx.Done()
		log.Info("Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorw("Ошибка при остановке сервера", "error", err.Error())
		}
	}()

	// Запускаем сервер
	log.Infow("🚀 Сервер запускается", "port", cfg.Port, "env", cfg.AppEnv, "storage", cfg.Storage)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Ошибка запуска сервера: %v", err)
	}
}
