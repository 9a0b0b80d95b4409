package proposal

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API предложений обмена
func (s *ProposalService) SetupRoutes(router fiber.Router, auth, rateLimit fiber.Handler) {
	api := router.Group("/proposals")

	// Все маршруты требуют авторизации
	api.Use(auth)

	api.Post("/", rateLimit, s.CreateProposal)
	api.Get("/", s.GetMyProposals)
	api.Get("/:id", s.GetProposal)

	api.Post("/:id/accept", s.AcceptProposal)
	api.Post("/:id/reject", s.RejectProposal)
	// Старый вариант смены статуса, проходит через те же проверки
	api.Put("/:id/status", s.UpdateProposalStatus)
}
