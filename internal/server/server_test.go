package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/repository/memory"
	"github.com/rajivgeraev/barter-api/internal/services/auth"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
		Storage:     config.StorageMemory,
		CORSOrigins: []string{"*"},
		Pagination:  config.PaginationConfig{PageSize: 10, MaxPageSize: 100},
		RateLimit:   config.RateLimitConfig{Proposals: 20, Window: time.Minute},
	}
}

func newTestApp(t *testing.T, rdb *redis.Client) *fiber.App {
	t.Helper()
	return NewApp(testConfig(), memory.New(), rdb, Options{
		AuthOptions: []auth.Option{auth.WithBcryptCost(bcrypt.MinCost)},
	})
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func register(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/api/auth/register", "",
		`{"username":"`+username+`","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func createAd(t *testing.T, app *fiber.App, token, title, category string) string {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/api/ads", token,
		`{"title":"`+title+`","description":"в хорошем состоянии","category":"`+category+`","condition":"used"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return body["ad"].(map[string]any)["id"].(string)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := call(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestHealthWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	status, body := call(t, newTestApp(t, rdb), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["redis"])
}

func TestExchangeFlow(t *testing.T) {
	app := newTestApp(t, nil)

	alice := register(t, app, "alice")
	bob := register(t, app, "bob")
	eve := register(t, app, "eve")

	book := createAd(t, app, alice, "Книга", "books")
	phone := createAd(t, app, bob, "Телефон", "electronics")

	status, body := call(t, app, http.MethodGet, "/api/ads", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])

	// Алиса предлагает книгу за телефон Боба
	status, body = call(t, app, http.MethodPost, "/api/proposals", alice,
		`{"ad_sender_id":"`+book+`","ad_receiver_id":"`+phone+`","comment":"Меняю книгу на телефон"}`)
	require.Equal(t, http.StatusCreated, status, body)
	proposal := body["proposal"].(map[string]any)
	proposalID := proposal["id"].(string)
	assert.Equal(t, "pending", proposal["status"])

	status, body = call(t, app, http.MethodPost, "/api/proposals", alice,
		`{"ad_sender_id":"`+book+`","ad_receiver_id":"`+phone+`","comment":"Еще раз"}`)
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = call(t, app, http.MethodGet, "/api/proposals/"+proposalID, eve, "")
	assert.Equal(t, http.StatusForbidden, status)

	// Принять может только получатель
	status, _ = call(t, app, http.MethodPost, "/api/proposals/"+proposalID+"/accept", alice, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = call(t, app, http.MethodGet, "/api/proposals?box=received", bob, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["received"], 1)

	status, body = call(t, app, http.MethodPut, "/api/proposals/"+proposalID+"/status", bob, `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "accepted", body["proposal"].(map[string]any)["status"])

	status, _ = call(t, app, http.MethodPost, "/api/proposals/"+proposalID+"/reject", bob, "")
	assert.Equal(t, http.StatusConflict, status)

	// Оба объявления сняты с публикации, но остаются доступны по ссылке
	status, body = call(t, app, http.MethodGet, "/api/ads", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, body = call(t, app, http.MethodGet, "/api/ads/"+book, alice, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["ad"].(map[string]any)["is_active"])
	assert.Equal(t, true, body["is_owner"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/ads"},
		{http.MethodGet, "/api/ads/my"},
		{http.MethodGet, "/api/proposals"},
		{http.MethodPost, "/api/proposals"},
		{http.MethodGet, "/api/profile"},
		{http.MethodGet, "/api/upload/params"},
	} {
		status, body := call(t, app, route.method, route.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.NotEmpty(t, body["error"], route.path)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	app := newTestApp(t, rdb)

	token := register(t, app, "alice")

	status, _ := call(t, app, http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/auth/logout", token, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodGet, "/api/profile", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, log.LevelError, ParseLogLevel("error"))
	assert.Equal(t, log.LevelInfo, ParseLogLevel("verbose"))
}
