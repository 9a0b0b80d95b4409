// Package apperr описывает ошибки бизнес-правил и их отображение в HTTP-статусы.
package apperr

import (
	"errors"
	"net/http"
)

// Kind класс ошибки
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	// KindConflict ошибка валидации, которая отдается как 409
	KindConflict
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindUnavailable
)

// Error ошибка с классом, машинным кодом и сообщением для пользователя
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по коду, чтобы errors.Is работал с копиями сентинелов
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// New создает ошибку
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap создает ошибку с причиной
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, "validation_error", message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, "forbidden", message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, "unauthorized", message)
}

// KindOf возвращает класс ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsValidation true для любой ошибки валидации, включая конфликты
func IsValidation(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindConflict
}

// HTTPStatus отображает ошибку в HTTP-статус
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Public возвращает сообщение и код, которые можно показать пользователю.
// Внутренние ошибки не раскрываются.
func Public(err error) (message, code string) {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message, e.Code
	}
	return "Внутренняя ошибка сервера", "internal_error"
}
