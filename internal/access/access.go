// Package access содержит проверки прав, которые выполняются до каждой операции.
// Любая проверка без явного разрешения отказывает.
package access

import (
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/models"
)

var (
	ErrUnauthenticated = apperr.Unauthorized("Вы должны быть авторизованы")
	ErrNotAdOwner      = apperr.New(apperr.KindForbidden, "not_ad_owner", "Вы не являетесь владельцем объявления")
	ErrNotReceiver     = apperr.New(apperr.KindForbidden, "not_proposal_receiver", "Решение по предложению принимает только владелец запрошенного объявления")
	ErrNotParticipant  = apperr.New(apperr.KindForbidden, "not_proposal_participant", "Предложение доступно только его участникам")
)

// RequireActor требует аутентифицированного пользователя
func RequireActor(actor *uuid.UUID) (uuid.UUID, error) {
	if actor == nil || *actor == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return *actor, nil
}

// RequireAdOwner разрешает действие только владельцу объявления
func RequireAdOwner(actor uuid.UUID, ad *models.Ad) error {
	if ad == nil || actor == uuid.Nil || ad.UserID != actor {
		return ErrNotAdOwner
	}
	return nil
}

// RequireProposalReceiver разрешает решение только владельцу ad_receiver
func RequireProposalReceiver(actor uuid.UUID, p *models.ExchangeProposal) error {
	if p == nil || actor == uuid.Nil || p.ReceiverUserID != actor {
		return ErrNotReceiver
	}
	return nil
}

// RequireProposalParticipant разрешает просмотр отправителю и получателю
func RequireProposalParticipant(actor uuid.UUID, p *models.ExchangeProposal) error {
	if p == nil || actor == uuid.Nil {
		return ErrNotParticipant
	}
	if p.SenderUserID != actor && p.ReceiverUserID != actor {
		return ErrNotParticipant
	}
	return nil
}
