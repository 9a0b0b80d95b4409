package ad

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// AdService HTTP-обработчики объявлений
type AdService struct {
	svc *Service
}

// NewAdService создает новый экземпляр AdService
func NewAdService(svc *Service) *AdService {
	return &AdService{svc: svc}
}

type createAdRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	ImageURL    *string `json:"image_url"`
	Category    string  `json:"category" validate:"required"`
	Condition   string  `json:"condition" validate:"required"`
}

// updateAdRequest частичная правка: отсутствующие поля не меняются,
// пустой image_url убирает изображение
type updateAdRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	Category    *string `json:"category"`
	Condition   *string `json:"condition"`
}

func (r updateAdRequest) patch() (models.AdPatch, error) {
	var p models.AdPatch
	p.Title = r.Title
	p.Description = r.Description
	if r.ImageURL != nil {
		img := r.ImageURL
		if *img == "" {
			img = nil
		}
		p.ImageURL = &img
	}
	if r.Category != nil {
		cat, err := models.ParseCategory(*r.Category)
		if err != nil {
			return p, apperr.Validation("Неизвестная категория")
		}
		p.Category = &cat
	}
	if r.Condition != nil {
		cond, err := models.ParseCondition(*r.Condition)
		if err != nil {
			return p, apperr.Validation("Неизвестное состояние товара")
		}
		p.Condition = &cond
	}
	return p, nil
}

// CreateAd создает новое объявление
func (s *AdService) CreateAd(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}

	var req createAdRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return apperr.Validation("Неизвестная категория")
	}
	condition, err := models.ParseCondition(req.Condition)
	if err != nil {
		return apperr.Validation("Неизвестное состояние товара")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.svc.Create(ctx, actor, &models.Ad{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Category:    category,
		Condition:   condition,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"ad":      ad,
		"message": "Объявление успешно создано",
	})
}

// GetAds возвращает страницу каталога активных объявлений
func (s *AdService) GetAds(c fiber.Ctx) error {
	filter := models.AdFilter{Text: c.Query("q")}

	if raw := c.Query("category"); raw != "" {
		cat, err := models.ParseCategory(raw)
		if err != nil {
			return apperr.Validation("Неизвестная категория")
		}
		filter.Category = &cat
	}
	if raw := c.Query("condition"); raw != "" {
		cond, err := models.ParseCondition(raw)
		if err != nil {
			return apperr.Validation("Неизвестное состояние товара")
		}
		filter.Condition = &cond
	}

	var err error
	if filter.Page, err = queryInt(c, "page"); err != nil {
		return err
	}
	if filter.PageSize, err = queryInt(c, "page_size"); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.svc.List(ctx, filter)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetMyAds возвращает все объявления текущего пользователя
func (s *AdService) GetMyAds(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ads, err := s.svc.ListMine(ctx, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ads":   ads,
		"total": len(ads),
	})
}

// GetAd возвращает объявление; is_owner заполняется для авторизованного владельца
func (s *AdService) GetAd(c fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.svc.Get(ctx, id)
	if err != nil {
		return err
	}

	isOwner := false
	if actor := middleware.Actor(c); actor != nil {
		isOwner = access.RequireAdOwner(*actor, ad) == nil
	}
	return c.JSON(fiber.Map{
		"ad":       ad,
		"is_owner": isOwner,
	})
}

// UpdateAd изменяет объявление владельца
func (s *AdService) UpdateAd(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateAdRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}
	patch, err := req.patch()
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.svc.Update(ctx, actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"ad":      ad,
		"message": "Объявление успешно обновлено",
	})
}

// DeleteAd удаляет объявление владельца
func (s *AdService) DeleteAd(c fiber.Ctx) error {
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

	if err := s.svc.Delete(ctx, actor, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetChoices возвращает допустимые категории и состояния для фильтров каталога
func (s *AdService) GetChoices(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": models.Categories,
		"conditions": models.Conditions,
	})
}

func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Параметр " + key + " должен быть числом")
	}
	return n, nil
}
