// Package proposal реализует жизненный цикл предложений обмена:
// создание, принятие или отклонение и выборку предложений участника.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3/log"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
)

var (
	ErrAdNotFound        = apperr.New(apperr.KindNotFound, "ad_not_found", "Объявление не найдено")
	ErrProposalNotFound  = apperr.New(apperr.KindNotFound, "proposal_not_found", "Предложение не найдено")
	ErrNotSenderOwner    = apperr.New(apperr.KindForbidden, "not_sender_owner", "Вы не можете предложить чужое объявление для обмена")
	ErrSelfExchange      = apperr.New(apperr.KindValidation, "self_exchange", "Нельзя предлагать обмен на свой же товар")
	ErrDuplicateProposal = apperr.New(apperr.KindConflict, "duplicate_proposal", "Вы уже отправляли предложение для этого обмена")
	ErrInactiveAd        = apperr.New(apperr.KindValidation, "inactive_ad", "Объявление уже не участвует в обмене")
	ErrAlreadyDecided    = apperr.New(apperr.KindConflict, "already_decided", "Решение по предложению уже принято")
	ErrEmptyComment      = apperr.New(apperr.KindValidation, "empty_comment", "Комментарий обязателен")
)

// CreateInput данные нового предложения
type CreateInput struct {
	SenderAdID   uuid.UUID
	ReceiverAdID uuid.UUID
	Comment      string
}

// Engine проверяет и переводит предложения между статусами
type Engine struct {
	repo repository.Repository
}

func NewEngine(repo repository.Repository) *Engine {
	return &Engine{repo: repo}
}

// Create создает предложение обменять объявление отправителя на объявление получателя.
// Проверки идут в порядке: оба объявления существуют, actor владеет объявлением
// отправителя, владельцы разные, пары еще не было, оба объявления активны.
func (e *Engine) Create(ctx context.Context, actor uuid.UUID, in CreateInput) (*models.ExchangeProposal, error) {
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, ErrEmptyComment
	}

	var created *models.ExchangeProposal
	err := e.repo.InTx(ctx, func(q repository.Queries) error {
		ads, err := q.LockAds(ctx, in.SenderAdID, in.ReceiverAdID)
		if err != nil {
			return err
		}
		sender, ok := ads[in.SenderAdID]
		if !ok {
			return ErrAdNotFound
		}
		receiver, ok := ads[in.ReceiverAdID]
		if !ok {
			return ErrAdNotFound
		}

		if err := access.RequireAdOwner(actor, sender); err != nil {
			return ErrNotSenderOwner
		}
		if sender.UserID == receiver.UserID {
			return ErrSelfExchange
		}

		exists, err := q.ProposalExists(ctx, sender.ID, receiver.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateProposal
		}

		if !sender.IsActive || !receiver.IsActive {
			return ErrInactiveAd
		}

		p := &models.ExchangeProposal{
			AdSenderID:   sender.ID,
			AdReceiverID: receiver.ID,
			Comment:      comment,
		}
		if err := q.CreateProposal(ctx, p); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return ErrDuplicateProposal
			case errors.Is(err, repository.ErrNotFound):
				return ErrAdNotFound
			}
			return fmt.Errorf("ошибка создания предложения: %w", err)
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infow("Предложение обмена создано",
		"proposal_id", created.ID,
		"ad_sender_id", created.AdSenderID,
		"ad_receiver_id", created.AdReceiverID,
	)
	return created, nil
}

// Decide принимает или отклоняет предложение. Принятие снимает с публикации
// оба объявления в той же транзакции, что и смена статуса.
func (e *Engine) Decide(ctx context.Context, actor, proposalID uuid.UUID, decision models.Decision) (*models.ExchangeProposal, error) {
	var result *models.ExchangeProposal
	err := e.repo.InTx(ctx, func(q repository.Queries) error {
		p, err := q.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrProposalNotFound
			}
			return err
		}

		if err := access.RequireProposalReceiver(actor, p); err != nil {
			return err
		}
		if p.Status != models.StatusPending {
			return ErrAlreadyDecided
		}

		if decision == models.DecisionAccept {
			// Повторная проверка под блокировкой: два параллельных принятия
			// с общим объявлением не могут пройти оба
			ads, err := q.LockAds(ctx, p.AdSenderID, p.AdReceiverID)
			if err != nil {
				return err
			}
			for _, id := range []uuid.UUID{p.AdSenderID, p.AdReceiverID} {
				ad, ok := ads[id]
				if !ok {
					return ErrAdNotFound
				}
				if !ad.IsActive {
					return ErrInactiveAd
				}
			}
		}

		if err := q.SetProposalStatus(ctx, p.ID, decision.Status()); err != nil {
			return err
		}
		if decision == models.DecisionAccept {
			if err := q.DeactivateAds(ctx, p.AdSenderID, p.AdReceiverID); err != nil {
				return err
			}
		}

		result, err = q.GetProposal(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infow("Решение по предложению принято",
		"proposal_id", result.ID,
		"status", result.Status,
	)
	return result, nil
}

// Get возвращает предложение одному из его участников
func (e *Engine) Get(ctx context.Context, actor, proposalID uuid.UUID) (*models.ExchangeProposal, error) {
	p, err := e.repo.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	if err := access.RequireProposalParticipant(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListMine возвращает отправленные и полученные предложения пользователя.
// Пустой box означает оба списка.
func (e *Engine) ListMine(ctx context.Context, actor uuid.UUID, box models.ProposalBox, status *models.ProposalStatus) (*models.MyProposals, error) {
	out := &models.MyProposals{
		Sent:     []models.ExchangeProposal{},
		Received: []models.ExchangeProposal{},
	}

	if box == "" || box == models.BoxSent {
		sent, err := e.repo.ListProposals(ctx, models.ProposalFilter{UserID: actor, Box: models.BoxSent, Status: status})
		if err != nil {
			return nil, fmt.Errorf("ошибка получения отправленных предложений: %w", err)
		}
		if sent != nil {
			out.Sent = sent
		}
	}
	if box == "" || box == models.BoxReceived {
		received, err := e.repo.ListProposals(ctx, models.ProposalFilter{UserID: actor, Box: models.BoxReceived, Status: status})
		if err != nil {
			return nil, fmt.Errorf("ошибка получения полученных предложений: %w", err)
		}
		if received != nil {
			out.Received = received
		}
	}
	return out, nil
}
