package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

const (
	localUserID = "userID"
	localClaims = "claims"
)

// RevocationChecker проверяет, отозван ли токен
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

var (
	errMissingHeader = apperr.New(apperr.KindUnauthorized, "missing_token", "Отсутствует заголовок авторизации")
	errHeaderFormat  = apperr.New(apperr.KindUnauthorized, "invalid_token", "Неверный формат заголовка авторизации")
	errInvalidToken  = apperr.New(apperr.KindUnauthorized, "invalid_token", "Недействительный или просроченный токен")
	errRevokedToken  = apperr.New(apperr.KindUnauthorized, "revoked_token", "Токен отозван")
)

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService, revoked RevocationChecker) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return errMissingHeader
		}

		claims, err := authenticate(authHeader, jwtService, revoked)
		if err != nil {
			return err
		}

		setActor(c, claims)
		return c.Next()
	}
}

// OptionalAuth заполняет пользователя, если передан валидный токен, и пропускает анонимов
func OptionalAuth(jwtService *utils.JWTService, revoked RevocationChecker) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}

		claims, err := authenticate(authHeader, jwtService, revoked)
		if err != nil {
			return err
		}

		setActor(c, claims)
		return c.Next()
	}
}

func authenticate(authHeader string, jwtService *utils.JWTService, revoked RevocationChecker) (*utils.Claims, error) {
	// Проверяем Bearer токен
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errHeaderFormat
	}

	claims, err := jwtService.ValidateToken(parts[1])
	if err != nil {
		return nil, errInvalidToken
	}

	if revoked != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		isRevoked, err := revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			log.Warnf("Не удалось проверить отзыв токена: %v", err)
		}
		if isRevoked {
			return nil, errRevokedToken
		}
	}

	return claims, nil
}

func setActor(c fiber.Ctx, claims *utils.Claims) {
	// ValidateToken уже проверил, что subject является UUID
	userID, _ := claims.UserID()
	c.Locals(localUserID, userID)
	c.Locals(localClaims, claims)
}

// UserID возвращает id аутентифицированного пользователя
func UserID(c fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(localUserID).(uuid.UUID)
	return id, ok
}

// Actor возвращает указатель на id пользователя или nil для анонима
func Actor(c fiber.Ctx) *uuid.UUID {
	if id, ok := UserID(c); ok {
		return &id
	}
	return nil
}

// TokenClaims возвращает claims текущего токена
func TokenClaims(c fiber.Ctx) (*utils.Claims, bool) {
	claims, ok := c.Locals(localClaims).(*utils.Claims)
	return claims, ok
}
