package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/apperr"
	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r[jti], nil
}

func newApp(jwt *utils.JWTService, revoked RevocationChecker) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/private", AuthMiddleware(jwt, revoked), func(c fiber.Ctx) error {
		id, _ := UserID(c)
		return c.SendString(id.String())
	})
	app.Get("/public", OptionalAuth(jwt, revoked), func(c fiber.Ctx) error {
		if actor := Actor(c); actor != nil {
			return c.SendString(actor.String())
		}
		return c.SendString("anonymous")
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return errors.New("db down")
	})
	app.Get("/forbidden", func(c fiber.Ctx) error {
		return apperr.Forbidden("Нет доступа")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTService("secret", time.Hour)
	userID := uuid.New()
	token, claims, err := jwt.GenerateToken(userID)
	require.NoError(t, err)

	revoked := revokedSet{}
	app := newApp(jwt, revoked)

	status, body := doRequest(t, app, "/private", token)
	assert.Equal(t, 200, status)
	assert.Equal(t, userID.String(), body)

	status, _ = doRequest(t, app, "/private", "")
	assert.Equal(t, 401, status)

	status, _ = doRequest(t, app, "/private", "garbage")
	assert.Equal(t, 401, status)

	revoked[claims.ID] = true
	status, body = doRequest(t, app, "/private", token)
	assert.Equal(t, 401, status)
	assert.Contains(t, body, "revoked_token")
}

func TestAuthMiddlewareHeaderFormat(t *testing.T) {
	jwt := utils.NewJWTService("secret", time.Hour)
	app := newApp(jwt, nil)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	jwt := utils.NewJWTService("secret", time.Hour)
	app := newApp(jwt, nil)
	userID := uuid.New()
	token, _, err := jwt.GenerateToken(userID)
	require.NoError(t, err)

	_, body := doRequest(t, app, "/public", "")
	assert.Equal(t, "anonymous", body)

	_, body = doRequest(t, app, "/public", token)
	assert.Equal(t, userID.String(), body)

	// Испорченный токен не превращается в анонимный доступ
	status, _ := doRequest(t, app, "/public", "garbage")
	assert.Equal(t, 401, status)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := newApp(utils.NewJWTService("secret", time.Hour), nil)

	status, body := doRequest(t, app, "/boom", "")
	assert.Equal(t, 500, status)
	assert.NotContains(t, body, "db down")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "internal_error", payload["code"])

	status, body = doRequest(t, app, "/forbidden", "")
	assert.Equal(t, 403, status)
	assert.Contains(t, body, "Нет доступа")

	status, _ = doRequest(t, app, "/missing", "")
	assert.Equal(t, 404, status)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	jwt := utils.NewJWTService("secret", time.Hour)
	limiter := cache.NewLimiter(rdb, 2, time.Minute)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/proposals", AuthMiddleware(jwt, nil), RateLimit(limiter, "proposals"), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	token, _, err := jwt.GenerateToken(uuid.New())
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/proposals", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{201, 201, 429}, codes)
}
