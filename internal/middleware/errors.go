package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"

	"github.com/rajivgeraev/barter-api/internal/apperr"
)

// ErrorHandler превращает ошибку обработчика в JSON-ответ {"error", "code"}
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
			"code":  "http_error",
		})
	}

	status := apperr.HTTPStatus(err)
	message, code := apperr.Public(err)
	switch {
	case status >= fiber.StatusInternalServerError:
		log.Errorw("Ошибка обработки запроса",
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
		)
	case apperr.IsValidation(err):
		log.Debugw("Запрос отклонен",
			"method", c.Method(),
			"path", c.Path(),
			"code", code,
			"error", err.Error(),
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
