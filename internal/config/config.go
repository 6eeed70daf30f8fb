// Пакет config — загрузка и валидация конфигурации сервиса Rivilog
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend'ы хранилища файлов.
const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Внешний базовый URL сервиса (для публичных ссылок локального хранилища)
	PublicBaseURL string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище файлов ---

	// Backend хранилища: local или s3
	BlobBackend string
	// Каталог локального хранилища
	BlobLocalDir string
	// Бакет S3-совместимого хранилища
	S3Bucket string
	// Регион S3
	S3Region string
	// Endpoint S3-совместимого хранилища (MinIO, Supabase Storage); пусто — AWS
	S3Endpoint string
	// Базовый публичный URL объектов; пусто — вычисляется из endpoint
	S3PublicURL string
	// URL проверки доступности хранилища для dephealth; пусто — не проверяется
	S3HealthURL string

	// --- Администрирование ---

	// Логин администратора
	AdminUser string
	// bcrypt-хэш пароля администратора
	AdminPasswordHash string
	// Секрет HMAC для подписи токенов администратора
	JWTSecret string
	// Issuer токенов администратора
	JWTIssuer string
	// Время жизни токена администратора
	JWTTTL time.Duration
	// URL JWKS внешнего IdP (опционально, заменяет HMAC-проверку)
	JWTJWKSURL string

	// --- Уведомления ---

	// API-ключ Resend; пусто — уведомления только логируются
	ResendAPIKey string
	// Адрес отправителя
	MailFrom string
	// Таймаут отправки одного уведомления
	NotifyTimeout time.Duration

	// --- Приём заявок ---

	// Время жизни незавершённой сессии мастера
	SessionTTL time.Duration
	// Максимальное количество одновременных сессий
	SessionCacheSize int
	// Таймаут загрузки файлов при фиксации заявки
	UploadTimeout time.Duration
	// Максимальный размер одного файла
	MaxUploadSize int64

	// --- Экспорт ---

	// Таймаут скачивания одного файла при сборке архива
	FetchTimeout time.Duration
	// Количество параллельных скачиваний при сборке архива
	ArchiveParallelism int

	// --- Кэш заявок ---

	ClaimCacheSize int
	ClaimCacheTTL  time.Duration

	// --- Очистка осиротевших файлов ---

	// Минимальный возраст файла без заявки, после которого он удаляется
	OrphanGrace time.Duration
	// Интервал фоновой очистки; 0 — только по запросу администратора
	OrphanSweepInterval time.Duration

	// --- topologymetrics ---

	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Группа сервиса в топологии
	DephealthGroup string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RV_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("RV_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("RV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RV_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("RV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.PublicBaseURL = strings.TrimRight(
		getEnvDefault("RV_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("RV_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("RV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RV_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("RV_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("RV_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("RV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("RV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище файлов ---

	cfg.BlobBackend = getEnvDefault("RV_BLOB_BACKEND", BlobBackendLocal)
	switch cfg.BlobBackend {
	case BlobBackendLocal:
		cfg.BlobLocalDir = getEnvDefault("RV_BLOB_LOCAL_DIR", "./data/comprovantes")
	case BlobBackendS3:
		cfg.S3Bucket = getEnvDefault("RV_S3_BUCKET", "comprovantes")
		cfg.S3Region = getEnvDefault("RV_S3_REGION", "us-east-1")
		cfg.S3Endpoint = strings.TrimRight(getEnvDefault("RV_S3_ENDPOINT", ""), "/")
		cfg.S3PublicURL = strings.TrimRight(getEnvDefault("RV_S3_PUBLIC_URL", ""), "/")
		if cfg.S3PublicURL == "" {
			if cfg.S3Endpoint == "" {
				cfg.S3PublicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
			} else {
				cfg.S3PublicURL = cfg.S3Endpoint + "/" + cfg.S3Bucket
			}
		}
		cfg.S3HealthURL = getEnvDefault("RV_S3_HEALTH_URL", "")
	default:
		return nil, fmt.Errorf("RV_BLOB_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.BlobBackend)
	}

	// --- Администрирование ---

	cfg.AdminUser = getEnvDefault("RV_ADMIN_USER", "admin")

	cfg.AdminPasswordHash, err = getEnvRequired("RV_ADMIN_PASSWORD_HASH")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(cfg.AdminPasswordHash, "$2") {
		return nil, fmt.Errorf("RV_ADMIN_PASSWORD_HASH: ожидается bcrypt-хэш")
	}

	cfg.JWTSecret, err = getEnvRequired("RV_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("RV_JWT_SECRET: минимальная длина 32 байта, получено %d", len(cfg.JWTSecret))
	}

	cfg.JWTIssuer = getEnvDefault("RV_JWT_ISSUER", "rivilog")

	cfg.JWTTTL, err = getEnvDuration("RV_JWT_TTL", 8*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RV_JWT_TTL: %w", err)
	}

	cfg.JWTJWKSURL = getEnvDefault("RV_JWT_JWKS_URL", "")

	// --- Уведомления ---

	cfg.ResendAPIKey = getEnvDefault("RV_RESEND_API_KEY", "")
	cfg.MailFrom = getEnvDefault("RV_MAIL_FROM", "Rivilog <onboarding@resend.dev>")

	cfg.NotifyTimeout, err = getEnvDuration("RV_NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RV_NOTIFY_TIMEOUT: %w", err)
	}

	// --- Приём заявок ---

	cfg.SessionTTL, err = getEnvDuration("RV_SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RV_SESSION_TTL: %w", err)
	}

	cfg.SessionCacheSize, err = getEnvInt("RV_SESSION_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("RV_SESSION_CACHE_SIZE: %w", err)
	}
	if cfg.SessionCacheSize < 1 {
		return nil, fmt.Errorf("RV_SESSION_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.SessionCacheSize)
	}

	cfg.UploadTimeout, err = getEnvDuration("RV_UPLOAD_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RV_UPLOAD_TIMEOUT: %w", err)
	}

	cfg.MaxUploadSize, err = getEnvInt64("RV_MAX_UPLOAD_SIZE", 20*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("RV_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("RV_MAX_UPLOAD_SIZE: значение должно быть положительным, получено %d", cfg.MaxUploadSize)
	}

	// --- Экспорт ---

	cfg.FetchTimeout, err = getEnvDuration("RV_FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RV_FETCH_TIMEOUT: %w", err)
	}

	cfg.ArchiveParallelism, err = getEnvInt("RV_ARCHIVE_PARALLELISM", 4)
	if err != nil {
		return nil, fmt.Errorf("RV_ARCHIVE_PARALLELISM: %w", err)
	}
	if cfg.ArchiveParallelism < 1 || cfg.ArchiveParallelism > 32 {
		return nil, fmt.Errorf("RV_ARCHIVE_PARALLELISM: значение %d вне допустимого диапазона 1-32", cfg.ArchiveParallelism)
	}

	// --- Кэш заявок ---

	cfg.ClaimCacheSize, err = getEnvInt("RV_CLAIM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("RV_CLAIM_CACHE_SIZE: %w", err)
	}

	cfg.ClaimCacheTTL, err = getEnvDuration("RV_CLAIM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RV_CLAIM_CACHE_TTL: %w", err)
	}

	// --- Очистка осиротевших файлов ---

	cfg.OrphanGrace, err = getEnvDuration("RV_ORPHAN_GRACE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RV_ORPHAN_GRACE: %w", err)
	}

	cfg.OrphanSweepInterval, err = getEnvDuration("RV_ORPHAN_SWEEP_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("RV_ORPHAN_SWEEP_INTERVAL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthCheckInterval, err = getEnvDuration("RV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.DephealthGroup = getEnvDefault("RV_DEPHEALTH_GROUP", "rivilog")

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL базы данных в формате golang-migrate (pgx5://).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SecureCookie сообщает, что сервис доступен по HTTPS и cookie
// сессии нужно помечать Secure.
func (c *Config) SecureCookie() bool {
	return strings.HasPrefix(c.PublicBaseURL, "https://")
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — то же, что getEnvInt, для размеров в байтах.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
