package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// В сообщениях используем имена полей из JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate проверяет структуру по тегам validate и собирает все нарушения в одну ошибку
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("поле %s обязательно", fe.Field())
	case "max":
		return fmt.Sprintf("поле %s не длиннее %s символов", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("поле %s не короче %s символов", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("поле %s должно быть ссылкой", fe.Field())
	case "uuid":
		return fmt.Sprintf("поле %s должно быть UUID", fe.Field())
	case "oneof":
		return fmt.Sprintf("поле %s должно быть одним из: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("поле %s некорректно", fe.Field())
}

// BindAndValidate разбирает тело запроса и проверяет его
func BindAndValidate(c fiber.Ctx, dst any) error {
	if err := c.Bind().Body(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "validation_error", "Неверный формат данных", err)
	}
	return Validate(dst)
}
