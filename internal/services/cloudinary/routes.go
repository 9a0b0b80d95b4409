package cloudinary

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршрут выдачи параметров загрузки
func (s *CloudinaryService) SetupRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/upload/params", auth, s.GenerateUploadParams)
}
