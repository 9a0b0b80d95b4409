package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barter-api/internal/models"
)

const userColumns = `id, username, password_hash, telegram_id, first_name, last_name, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var hash *string
	if err := row.Scan(&u.ID, &u.Username, &hash, &u.TelegramID, &u.FirstName, &u.LastName, &u.CreatedAt); err != nil {
		return nil, err
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	return &u, nil
}

// CreateUser регистрирует пользователя с логином и паролем
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	var hash *string
	if user.PasswordHash != "" {
		hash = &user.PasswordHash
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, telegram_id, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, user.ID, user.Username, hash, user.TelegramID, user.FirstName, user.LastName).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при создании пользователя: %w", translate(err))
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// UpsertTelegramUser создает пользователя Telegram или обновляет его имя.
// Логин такого пользователя всегда tg_<telegram_id>.
func (s *Store) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	username := "tg_" + strconv.FormatInt(profile.TelegramID, 10)

	u, err := scanUser(s.q.QueryRow(ctx, `
		INSERT INTO users (id, username, telegram_id, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name
		RETURNING `+userColumns,
		uuid.New(), username, profile.TelegramID, profile.FirstName, profile.LastName))
	if err != nil {
		return nil, fmt.Errorf("ошибка при сохранении пользователя Telegram: %w", translate(err))
	}
	return u, nil
}
