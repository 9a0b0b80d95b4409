package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/apperr"
)

type sample struct {
	Title string `json:"title" validate:"required,max=5"`
	Link  string `json:"link" validate:"omitempty,url"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(&sample{Title: "Книга"}))

	err := Validate(&sample{Title: "", Link: "not a url"})
	assert.True(t, apperr.IsValidation(err))
	msg, code := apperr.Public(err)
	assert.Equal(t, "validation_error", code)
	assert.Contains(t, msg, "поле title обязательно")
	assert.Contains(t, msg, "поле link должно быть ссылкой")

	err = Validate(&sample{Title: "слишком длинно"})
	msg, _ = apperr.Public(err)
	assert.Contains(t, msg, "не длиннее 5")
}

func TestBindAndValidateMalformedBody(t *testing.T) {
	app := fiber.New()
	var bindErr error
	app.Post("/", func(c fiber.Ctx) error {
		bindErr = BindAndValidate(c, &sample{})
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	require.Error(t, bindErr)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(bindErr))
	msg, code := apperr.Public(bindErr)
	assert.Equal(t, "validation_error", code)
	assert.Equal(t, "Неверный формат данных", msg)
	// Причина сохраняется для журнала
	assert.NotNil(t, errors.Unwrap(bindErr))
}
