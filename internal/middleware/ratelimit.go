package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
)

// Limiter счетчик запросов
type Limiter interface {
	Allow(ctx context.Context, resource, id string) (bool, error)
}

// RateLimit ограничивает частоту запросов по пользователю, а для анонимов по IP.
// При ошибке хранилища счетчиков запрос пропускается.
func RateLimit(limiter Limiter, resource string) fiber.Handler {
	return func(c fiber.Ctx) error {
		var id string
		if uid, ok := UserID(c); ok {
			id = "user:" + uid.String()
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		allowed, err := limiter.Allow(ctx, resource, id)
		if err != nil {
			log.Warnf("Ошибка проверки лимита %s: %v", resource, err)
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Слишком много запросов, попробуйте позже",
				"code":  "rate_limited",
			})
		}
		return c.Next()
	}
}
