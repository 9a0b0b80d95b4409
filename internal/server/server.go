// Package server собирает приложение Fiber: middleware, сервисы и маршруты.
package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/repository"
	"github.com/rajivgeraev/barter-api/internal/services/ad"
	"github.com/rajivgeraev/barter-api/internal/services/auth"
	"github.com/rajivgeraev/barter-api/internal/services/cloudinary"
	"github.com/rajivgeraev/barter-api/internal/services/proposal"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// Options дополнительные настройки приложения
type Options struct {
	// AccessLog включает журнал запросов
	AccessLog bool
	// AuthOptions передаются сервису аутентификации
	AuthOptions []auth.Option
}

// NewApp создает приложение. rdb может быть nil: тогда отзыв токенов и лимиты отключены.
func NewApp(cfg *config.Config, repo repository.Repository, rdb *redis.Client, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Barter API",
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	tokens := cache.NewTokenStore(rdb)
	limiter := cache.NewLimiter(rdb, cfg.RateLimit.Proposals, cfg.RateLimit.Window)

	// Настраиваем middleware для аутентификации
	authMiddleware := middleware.AuthMiddleware(jwtService, tokens)
	optionalAuth := middleware.OptionalAuth(jwtService, tokens)
	proposalLimit := middleware.RateLimit(limiter, "proposals")

	// Создаём сервисы
	authService := auth.NewAuthService(auth.NewService(repo, jwtService, tokens, cfg.TelegramBotToken, opts.AuthOptions...))
	adService := ad.NewAdService(ad.NewService(repo, cfg.Pagination))
	proposalService := proposal.NewProposalService(proposal.NewEngine(repo))
	cloudinaryService := cloudinary.NewCloudinaryService(cfg.CloudinaryConfig)

	// Регистрируем маршруты
	app.Get("/health", healthHandler(repo, rdb))

	api := app.Group("/api")
	authService.SetupRoutes(api, authMiddleware)
	adService.SetupRoutes(api, authMiddleware, optionalAuth)
	proposalService.SetupRoutes(api, authMiddleware, proposalLimit)
	cloudinaryService.SetupRoutes(api, authMiddleware)

	return app
}

func healthHandler(repo repository.Repository, rdb *redis.Client) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "unavailable"
			}
		}

		if err := repo.Ping(ctx); err != nil {
			log.Errorw("Хранилище недоступно", "error", err.Error())
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "unavailable",
				"storage": "unavailable",
				"redis":   redisStatus,
			})
		}

		return c.JSON(fiber.Map{
			"status":  "ok",
			"storage": "ok",
			"redis":   redisStatus,
		})
	}
}

// ParseLogLevel переводит LOG_LEVEL в уровень логгера; неизвестное значение дает info
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	}
	return log.LevelInfo
}
