package proposal

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// ProposalService HTTP-обработчики предложений обмена
type ProposalService struct {
	engine *Engine
}

// NewProposalService создает новый экземпляр ProposalService
func NewProposalService(engine *Engine) *ProposalService {
	return &ProposalService{engine: engine}
}

type createProposalRequest struct {
	AdSenderID   string `json:"ad_sender_id" validate:"required,uuid"`
	AdReceiverID string `json:"ad_receiver_id" validate:"required,uuid"`
	Comment      string `json:"comment" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateProposal создает новое предложение обмена
func (s *ProposalService) CreateProposal(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}

	var req createProposalRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}

	senderAdID, err := uuid.Parse(req.AdSenderID)
	if err != nil {
		return apperr.Validation("Неверный формат ad_sender_id")
	}
	receiverAdID, err := uuid.Parse(req.AdReceiverID)
	if err != nil {
		return apperr.Validation("Неверный формат ad_receiver_id")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.engine.Create(ctx, actor, CreateInput{
		SenderAdID:   senderAdID,
		ReceiverAdID: receiverAdID,
		Comment:      req.Comment,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"proposal": p,
		"message":  "Предложение успешно отправлено!",
	})
}

// GetMyProposals возвращает отправленные и полученные предложения
func (s *ProposalService) GetMyProposals(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}

	box := models.ProposalBox(c.Query("box"))
	if box != "" && box != models.BoxSent && box != models.BoxReceived {
		return apperr.Validation("Параметр box должен быть sent или received")
	}

	var status *models.ProposalStatus
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseProposalStatus(raw)
		if err != nil {
			return apperr.Validation("Недопустимый статус предложения")
		}
		status = &st
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	mine, err := s.engine.ListMine(ctx, actor, box, status)
	if err != nil {
		return err
	}
	return c.JSON(mine)
}

// GetProposal возвращает предложение участнику обмена
func (s *ProposalService) GetProposal(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.engine.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// AcceptProposal принимает предложение
func (s *ProposalService) AcceptProposal(c fiber.Ctx) error {
	return s.decide(c, models.DecisionAccept)
}

// RejectProposal отклоняет предложение
func (s *ProposalService) RejectProposal(c fiber.Ctx) error {
	return s.decide(c, models.DecisionReject)
}

// UpdateProposalStatus обновляет статус предложения (accepted/rejected)
func (s *ProposalService) UpdateProposalStatus(c fiber.Ctx) error {
	var req updateStatusRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}
	decision, err := models.ParseDecision(req.Status)
	if err != nil {
		return apperr.Validation("Статус может быть только accepted или rejected")
	}
	return s.decide(c, decision)
}

func (s *ProposalService) decide(c fiber.Ctx, decision models.Decision) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.engine.Decide(ctx, actor, id, decision)
	if err != nil {
		return err
	}

	message := "Предложение отклонено"
	if p.Status == models.StatusAccepted {
		message = "Предложение принято, объявления сняты с публикации"
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"proposal": p,
		"message":  message,
	})
}
