package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя площадки
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	PasswordHash string    `json:"-"`
	TelegramID   *int64    `json:"telegram_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TelegramProfile данные пользователя из initData Telegram
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}
