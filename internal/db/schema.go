package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema полная схема базы данных. Каждый оператор идемпотентен.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(150) NOT NULL UNIQUE,
		password_hash TEXT,
		telegram_id   BIGINT UNIQUE,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS ads (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		image_url   TEXT,
		category    TEXT NOT NULL CHECK (category IN ('electronics', 'clothing', 'books', 'home', 'other')),
		condition   TEXT NOT NULL CHECK (condition IN ('new', 'used', 'broken')),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ads_active_created
		ON ads (is_active, created_at DESC, id DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_ads_user ON ads (user_id)`,

	`CREATE TABLE IF NOT EXISTS exchange_proposals (
		id             UUID PRIMARY KEY,
		ad_sender_id   UUID NOT NULL REFERENCES ads(id) ON DELETE CASCADE,
		ad_receiver_id UUID NOT NULL REFERENCES ads(id) ON DELETE CASCADE,
		comment        TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		decided_at     TIMESTAMPTZ,
		CONSTRAINT exchange_proposals_pair_key UNIQUE (ad_sender_id, ad_receiver_id),
		CONSTRAINT exchange_proposals_distinct_ads CHECK (ad_sender_id <> ad_receiver_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exchange_proposals_receiver ON exchange_proposals (ad_receiver_id)`,
}

// Migrate применяет схему
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка применения схемы (шаг %d): %w", i+1, err)
		}
	}
	return nil
}
