// Package cache хранит в Redis отозванные токены и счетчики ограничения частоты.
// Без Redis сервис продолжает работать: nil-клиент пропускает все проверки.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3/log"
	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/barter-api/internal/config"
)

// NewClient подключается к Redis. Пустой адрес или недоступный сервер дают nil.
func NewClient(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		log.Info("Redis не настроен, отзыв токенов и лимиты отключены")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis недоступен: %v (продолжаем без кэша)", err)
		_ = client.Close()
		return nil
	}

	log.Infow("Redis подключен", "addr", cfg.Addr)
	return client
}

// TokenStore список отозванных JWT по jti
type TokenStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb, now: time.Now}
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// Revoke отзывает токен до момента его истечения
func (s *TokenStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if s == nil || s.rdb == nil || jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("ошибка отзыва токена: %w", err)
	}
	return nil
}

// IsRevoked проверяет, отозван ли токен. Ошибка Redis не блокирует запрос.
func (s *TokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || s.rdb == nil || jti == "" {
		return false, nil
	}
	err := s.rdb.Get(ctx, blacklistKey(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

// Limiter считает запросы в фиксированном окне
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow увеличивает счетчик ключа и сообщает, не превышен ли лимит
func (l *Limiter) Allow(ctx context.Context, resource, id string) (bool, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			// Счетчик без TTL ограничил бы пользователя навсегда
			l.rdb.Del(ctx, key)
			return true, err
		}
	}
	if cnt > int64(l.limit) {
		// Ключ без TTL мог остаться после сбоя между INCR и EXPIRE
		ttl, err := l.rdb.TTL(ctx, key).Result()
		if err == nil && ttl == -1 {
			l.rdb.Expire(ctx, key, l.window)
		}
	}
	return cnt <= int64(l.limit), nil
}
