// Package auth регистрирует и аутентифицирует пользователей:
// логин и пароль, вход через Telegram Mini App, выход с отзывом токена.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/log"
	"github.com/google/uuid"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// telegramPrefix зарезервирован за пользователями Telegram
const telegramPrefix = "tg_"

var (
	ErrUsernameTaken      = apperr.New(apperr.KindConflict, "username_taken", "Пользователь с таким именем уже существует")
	ErrReservedUsername   = apperr.New(apperr.KindValidation, "reserved_username", "Имя пользователя не может начинаться с tg_")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid_credentials", "Неверное имя пользователя или пароль")
	ErrInvalidTelegram    = apperr.New(apperr.KindUnauthorized, "invalid_telegram_data", "Недействительные данные Telegram")
	ErrTelegramDisabled   = apperr.New(apperr.KindUnavailable, "telegram_disabled", "Вход через Telegram не настроен")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user_not_found", "Пользователь не найден")
)

// TokenRevoker отзывает выданные токены
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// Session результат успешного входа
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Service сценарии аутентификации
type Service struct {
	repo        repository.Repository
	jwtService  *utils.JWTService
	tokens      TokenRevoker
	botToken    string
	initDataTTL time.Duration
	bcryptCost  int
}

// Option настраивает Service
type Option func(*Service)

// WithBcryptCost меняет стоимость хеширования паролей
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(repo repository.Repository, jwtService *utils.JWTService, tokens TokenRevoker, botToken string, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		jwtService:  jwtService,
		tokens:      tokens,
		botToken:    botToken,
		initDataTTL: 24 * time.Hour,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, claims, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Register создает пользователя с логином и паролем
func (s *Service) Register(ctx context.Context, username, password, firstName, lastName string) (*Session, error) {
	username = strings.TrimSpace(username)
	if strings.HasPrefix(strings.ToLower(username), telegramPrefix) {
		return nil, ErrReservedUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	log.Infow("Пользователь зарегистрирован", "user_id", user.ID, "username", user.Username)
	return s.session(user)
}

// Login проверяет пароль и выдает токен
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// У пользователей Telegram пароля нет
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// TelegramLogin проверяет initData Mini App и выдает токен
func (s *Service) TelegramLogin(ctx context.Context, rawInitData string) (*Session, error) {
	if s.botToken == "" {
		return nil, ErrTelegramDisabled
	}

	if err := initdata.Validate(rawInitData, s.botToken, s.initDataTTL); err != nil {
		log.Debugw("initData не прошли проверку", "error", err.Error())
		return nil, ErrInvalidTelegram
	}

	data, err := initdata.Parse(rawInitData)
	if err != nil || data.User.ID == 0 {
		return nil, ErrInvalidTelegram
	}

	user, err := s.repo.UpsertTelegramUser(ctx, models.TelegramProfile{
		TelegramID: data.User.ID,
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения пользователя Telegram: %w", err)
	}

	log.Infow("Вход через Telegram", "user_id", user.ID, "telegram_id", data.User.ID)
	return s.session(user)
}

// Logout отзывает текущий токен до истечения его срока
func (s *Service) Logout(ctx context.Context, claims *utils.Claims) error {
	if s.tokens == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Profile возвращает данные пользователя
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
