package auth

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(router fiber.Router, auth fiber.Handler) {
	router.Post("/auth/register", s.RegisterHandler)
	router.Post("/auth/login", s.LoginHandler)
	router.Post("/auth/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты
	router.Post("/auth/logout", auth, s.LogoutHandler)
	router.Get("/profile", auth, s.ProfileHandler)
}
