package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Хранилища, которые умеет поднимать сервис
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config структура конфигурации
type Config struct {
	Port           string
	AppEnv         string
	LogLevel       string
	JWTSecret      string
	JWTTTL         time.Duration
	Storage        string
	DatabaseURL    string
	DatabaseConfig DatabaseConfig
	RedisConfig    RedisConfig
	Pagination     PaginationConfig
	RateLimit      RateLimitConfig

	CloudinaryConfig CloudinaryConfig
	TelegramBotToken string
	CORSOrigins      []string
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig содержит параметры подключения к Redis. Пустой Addr отключает Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PaginationConfig задает размер страницы каталога
type PaginationConfig struct {
	PageSize    int
	MaxPageSize int
}

// RateLimitConfig ограничивает частоту создания предложений обмена
type RateLimitConfig struct {
	Proposals int
	Window    time.Duration
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	UploadFolder string
}

// Enabled сообщает, заданы ли ключи Cloudinary
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() (*Config, error) {
	// .env не обязателен, в контейнере все приходит через окружение
	_ = godotenv.Load()

	var errs []error

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "barter_user"),
		Password: getEnv("PGPASSWORD", "barter_pass"),
		Name:     getEnv("PGDATABASE", "barter"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
		MaxConns: int32(getInt("DB_MAX_CONNS", 10, &errs)),
		MinConns: int32(getInt("DB_MIN_CONNS", 2, &errs)),
	}

	// Формируем строку подключения к базе данных, если она не задана целиком
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "production"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTTTL:      getDuration("JWT_TTL", 72*time.Hour, &errs),
		Storage:     strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		DatabaseURL: dbURL,

		DatabaseConfig: dbConfig,
		RedisConfig: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0, &errs),
		},
		Pagination: PaginationConfig{
			PageSize:    getInt("PAGE_SIZE", 10, &errs),
			MaxPageSize: getInt("MAX_PAGE_SIZE", 100, &errs),
		},
		RateLimit: RateLimitConfig{
			Proposals: getInt("PROPOSAL_RATE_LIMIT", 20, &errs),
			Window:    getDuration("PROPOSAL_RATE_WINDOW", time.Minute, &errs),
		},
		CloudinaryConfig: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "barter_ads"),
			UploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "ads"),
		},
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("не задана переменная окружения JWT_SECRET"))
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("неизвестное хранилище STORAGE=%q", cfg.Storage))
	}
	if cfg.Pagination.PageSize <= 0 || cfg.Pagination.MaxPageSize < cfg.Pagination.PageSize {
		errs = append(errs, errors.New("PAGE_SIZE должен быть положительным и не больше MAX_PAGE_SIZE"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("ошибка конфигурации: %w", errors.Join(errs...))
	}

	return cfg, nil
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: ожидается целое число, получено %q", key, raw))
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: ожидается длительность, получено %q", key, raw))
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
