// Package ad управляет каталогом объявлений: создание и правка владельцем,
// удаление и поиск по активным объявлениям.
package ad

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gofiber/fiber/v3/log"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

var (
	ErrAdNotFound     = apperr.New(apperr.KindNotFound, "ad_not_found", "Объявление не найдено")
	ErrPageOutOfRange = apperr.New(apperr.KindValidation, "page_out_of_range", "Слишком большой номер страницы")
)

// adRules ограничения на поля объявления после создания или правки
type adRules struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

func validateAd(ad *models.Ad) error {
	rules := adRules{Title: ad.Title, Description: ad.Description}
	if ad.ImageURL != nil {
		rules.ImageURL = *ad.ImageURL
	}
	if err := utils.Validate(&rules); err != nil {
		return err
	}
	if !ad.Category.Valid() {
		return apperr.Validation("Неизвестная категория")
	}
	if !ad.Condition.Valid() {
		return apperr.Validation("Неизвестное состояние товара")
	}
	return nil
}

// Service сценарии работы с объявлениями
type Service struct {
	repo       repository.Repository
	pagination config.PaginationConfig
}

func NewService(repo repository.Repository, pagination config.PaginationConfig) *Service {
	if pagination.PageSize <= 0 {
		pagination.PageSize = 10
	}
	if pagination.MaxPageSize < pagination.PageSize {
		pagination.MaxPageSize = pagination.PageSize
	}
	return &Service{repo: repo, pagination: pagination}
}

// Create публикует новое объявление пользователя
func (s *Service) Create(ctx context.Context, actor uuid.UUID, ad *models.Ad) (*models.Ad, error) {
	ad.ID = uuid.Nil
	ad.UserID = actor
	ad.Title = strings.TrimSpace(ad.Title)
	if ad.ImageURL != nil && strings.TrimSpace(*ad.ImageURL) == "" {
		ad.ImageURL = nil
	}
	if err := validateAd(ad); err != nil {
		return nil, err
	}

	if err := s.repo.CreateAd(ctx, ad); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, access.ErrUnauthenticated
		}
		return nil, fmt.Errorf("ошибка создания объявления: %w", err)
	}

	log.Infow("Объявление создано", "ad_id", ad.ID, "user_id", actor)
	return ad, nil
}

// Update применяет правку владельца. is_active правкой не меняется.
func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, patch models.AdPatch) (*models.Ad, error) {
	var updated *models.Ad
	err := s.repo.InTx(ctx, func(q repository.Queries) error {
		ads, err := q.LockAds(ctx, id)
		if err != nil {
			return err
		}
		ad, ok := ads[id]
		if !ok {
			return ErrAdNotFound
		}
		if err := access.RequireAdOwner(actor, ad); err != nil {
			return err
		}

		patch.Apply(ad)
		ad.Title = strings.TrimSpace(ad.Title)
		if err := validateAd(ad); err != nil {
			return err
		}
		if err := q.UpdateAd(ctx, ad); err != nil {
			return fmt.Errorf("ошибка обновления объявления: %w", err)
		}
		updated = ad
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete удаляет объявление вместе со всеми предложениями, которые на него ссылаются
func (s *Service) Delete(ctx context.Context, actor, id uuid.UUID) error {
	err := s.repo.InTx(ctx, func(q repository.Queries) error {
		ads, err := q.LockAds(ctx, id)
		if err != nil {
			return err
		}
		ad, ok := ads[id]
		if !ok {
			return ErrAdNotFound
		}
		if err := access.RequireAdOwner(actor, ad); err != nil {
			return err
		}
		if err := q.DeleteAd(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAdNotFound
			}
			return fmt.Errorf("ошибка удаления объявления: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Infow("Объявление удалено", "ad_id", id, "user_id", actor)
	return nil
}

// Get возвращает объявление, в том числе неактивное
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	ad, err := s.repo.GetAd(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAdNotFound
		}
		return nil, err
	}
	return ad, nil
}

// List ищет по каталогу активных объявлений
func (s *Service) List(ctx context.Context, filter models.AdFilter) (models.AdPage, error) {
	filter.Text = strings.TrimSpace(filter.Text)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = s.pagination.PageSize
	}
	if filter.PageSize > s.pagination.MaxPageSize {
		filter.PageSize = s.pagination.MaxPageSize
	}
	// Page*PageSize должно помещаться в int
	if filter.Page > math.MaxInt/filter.PageSize {
		return models.AdPage{}, ErrPageOutOfRange
	}

	ads, total, err := s.repo.SearchAds(ctx, filter)
	if err != nil {
		return models.AdPage{}, fmt.Errorf("ошибка поиска объявлений: %w", err)
	}

	var category, condition string
	if filter.Category != nil {
		category = string(*filter.Category)
	}
	if filter.Condition != nil {
		condition = string(*filter.Condition)
	}
	log.Debugw("Поиск объявлений",
		"q", filter.Text,
		"category", category,
		"condition", condition,
		"page", filter.Page,
		"total", total,
	)
	return models.NewAdPage(ads, total, filter), nil
}

// ListMine возвращает все объявления пользователя, активные и нет
func (s *Service) ListMine(ctx context.Context, actor uuid.UUID) ([]models.Ad, error) {
	ads, err := s.repo.ListUserAds(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения объявлений пользователя: %w", err)
	}
	if ads == nil {
		ads = []models.Ad{}
	}
	return ads, nil
}
