package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
)

const adColumns = `id, user_id, title, description, image_url, category, condition, is_active, created_at, updated_at`

// scanAd читает строку объявления в порядке adColumns
func scanAd(row pgx.Row) (*models.Ad, error) {
	var ad models.Ad
	var category, condition string
	if err := row.Scan(
		&ad.ID,
		&ad.UserID,
		&ad.Title,
		&ad.Description,
		&ad.ImageURL,
		&category,
		&condition,
		&ad.IsActive,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ad.Category = models.Category(category)
	ad.Condition = models.Condition(condition)
	return &ad, nil
}

func collectAds(rows pgx.Rows) ([]models.Ad, error) {
	defer rows.Close()

	var ads []models.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования объявления: %w", err)
		}
		ads = append(ads, *ad)
	}
	return ads, rows.Err()
}

// CreateAd сохраняет новое объявление; id и даты назначает сервер
func (s *Store) CreateAd(ctx context.Context, ad *models.Ad) error {
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO ads (id, user_id, title, description, image_url, category, condition)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_active, created_at, updated_at
	`, ad.ID, ad.UserID, ad.Title, ad.Description, ad.ImageURL, string(ad.Category), string(ad.Condition)).
		Scan(&ad.IsActive, &ad.CreatedAt, &ad.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка вставки объявления: %w", translate(err))
	}
	return nil
}

func (s *Store) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	ad, err := scanAd(s.q.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return ad, nil
}

// LockAds блокирует строки в порядке id, чтобы параллельные транзакции не взаимоблокировались
func (s *Store) LockAds(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Ad, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+adColumns+`
		FROM ads
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки объявлений: %w", err)
	}

	ads, err := collectAds(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*models.Ad, len(ads))
	for i := range ads {
		out[ads[i].ID] = &ads[i]
	}
	return out, nil
}

// UpdateAd обновляет редактируемые владельцем поля. is_active здесь не меняется.
func (s *Store) UpdateAd(ctx context.Context, ad *models.Ad) error {
	updated, err := scanAd(s.q.QueryRow(ctx, `
		UPDATE ads
		SET title = $1, description = $2, image_url = $3, category = $4, condition = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+adColumns,
		ad.Title, ad.Description, ad.ImageURL, string(ad.Category), string(ad.Condition), ad.ID))
	if err != nil {
		return fmt.Errorf("ошибка обновления объявления: %w", translate(err))
	}
	*ad = *updated
	return nil
}

func (s *Store) DeactivateAds(ctx context.Context, ids ...uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE ads SET is_active = FALSE, updated_at = NOW()
		WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return fmt.Errorf("ошибка снятия объявлений с публикации: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteAd удаляет объявление; предложения удаляются каскадом по внешним ключам
func (s *Store) DeleteAd(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления объявления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SearchAds ищет по активным объявлениям и возвращает страницу и общее количество
func (s *Store) SearchAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error) {
	where := []string{"is_active = TRUE"}
	var args []any

	if filter.Text != "" {
		args = append(args, "%"+escapeLike(filter.Text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Condition != nil {
		args = append(args, string(*filter.Condition))
		where = append(where, fmt.Sprintf("condition = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM ads WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета объявлений: %w", err)
	}

	query := `SELECT ` + adColumns + ` FROM ads WHERE ` + cond + ` ORDER BY created_at DESC, id DESC`
	if filter.PageSize > 0 {
		args = append(args, filter.PageSize, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса объявлений: %w", err)
	}
	ads, err := collectAds(rows)
	if err != nil {
		return nil, 0, err
	}
	return ads, total, nil
}

func (s *Store) ListUserAds(ctx context.Context, userID uuid.UUID) ([]models.Ad, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+adColumns+`
		FROM ads
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса объявлений пользователя: %w", err)
	}
	return collectAds(rows)
}

// escapeLike экранирует спецсимволы шаблона LIKE
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
