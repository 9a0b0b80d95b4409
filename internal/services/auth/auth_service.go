package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// AuthService – структура для обработки авторизации
type AuthService struct {
	svc *Service
}

// NewAuthService – конструктор AuthService
func NewAuthService(svc *Service) *AuthService {
	return &AuthService{svc: svc}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type telegramRequest struct {
	InitData string `json:"init_data" validate:"required"`
}

// RegisterHandler регистрирует пользователя и возвращает JWT
func (s *AuthService) RegisterHandler(c fiber.Ctx) error {
	var req registerRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.svc.Register(ctx, req.Username, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// LoginHandler проверяет логин и пароль и возвращает JWT
func (s *AuthService) LoginHandler(c fiber.Ctx) error {
	var req loginRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// TelegramAuthHandler проверяет initData, создает JWT и возвращает его
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var req telegramRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.svc.TelegramLogin(ctx, req.InitData)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// LogoutHandler отзывает текущий токен
func (s *AuthService) LogoutHandler(c fiber.Ctx) error {
	claims, _ := middleware.TokenClaims(c)

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.svc.Logout(ctx, claims); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вы вышли из системы",
	})
}

// ProfileHandler возвращает данные текущего пользователя
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	actor, err := access.RequireActor(middleware.Actor(c))
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.svc.Profile(ctx, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user})
}
