package ad

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API объявлений
func (s *AdService) SetupRoutes(router fiber.Router, auth, optionalAuth fiber.Handler) {
	api := router.Group("/ads")

	// Публичный каталог
	api.Get("/", s.GetAds)
	api.Get("/choices", s.GetChoices)

	api.Post("/", auth, s.CreateAd)
	api.Get("/my", auth, s.GetMyAds)

	// Детали доступны всем, владельцу дополнительно возвращается is_owner
	api.Get("/:id", optionalAuth, s.GetAd)

	api.Put("/:id", auth, s.UpdateAd)
	api.Patch("/:id", auth, s.UpdateAd)
	api.Delete("/:id", auth, s.DeleteAd)
}
