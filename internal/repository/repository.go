// Package repository описывает хранилище объявлений, предложений и пользователей.
// Реализации: internal/db (PostgreSQL) и internal/repository/memory.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/models"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("запись не найдена")
	// ErrDuplicate нарушено ограничение уникальности
	ErrDuplicate = errors.New("запись уже существует")
)

// Queries операции над хранилищем. Внутри InTx выполняются в одной транзакции.
type Queries interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error)

	CreateAd(ctx context.Context, ad *models.Ad) error
	GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	// LockAds читает объявления с блокировкой строк до конца транзакции.
	// Отсутствующие id просто не попадают в результат.
	LockAds(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Ad, error)
	UpdateAd(ctx context.Context, ad *models.Ad) error
	DeactivateAds(ctx context.Context, ids ...uuid.UUID) error
	// DeleteAd удаляет объявление вместе со всеми предложениями, которые на него ссылаются
	DeleteAd(ctx context.Context, id uuid.UUID) error
	SearchAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error)
	ListUserAds(ctx context.Context, userID uuid.UUID) ([]models.Ad, error)

	CreateProposal(ctx context.Context, p *models.ExchangeProposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error)
	GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error)
	ProposalExists(ctx context.Context, senderAdID, receiverAdID uuid.UUID) (bool, error)
	SetProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) error
	ListProposals(ctx context.Context, filter models.ProposalFilter) ([]models.ExchangeProposal, error)
	CountProposals(ctx context.Context) (int, error)
}

// Repository хранилище с поддержкой транзакций
type Repository interface {
	Queries
	// InTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}
