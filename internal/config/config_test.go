package config

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"RV_DB_HOST":             "localhost",
		"RV_DB_NAME":             "rivilog",
		"RV_DB_USER":             "rivilog",
		"RV_DB_PASSWORD":         "secret",
		"RV_ADMIN_PASSWORD_HASH": "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z9j8zY5P3.Bv3Z0Y9b1c2d3e",
		"RV_JWT_SECRET":          strings.Repeat("s", 32),
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("PublicBaseURL = %q, ожидается http://localhost:8080", cfg.PublicBaseURL)
	}
	if cfg.BlobBackend != BlobBackendLocal {
		t.Errorf("BlobBackend = %q, ожидается local", cfg.BlobBackend)
	}
	if cfg.BlobLocalDir != "./data/comprovantes" {
		t.Errorf("BlobLocalDir = %q", cfg.BlobLocalDir)
	}
	if cfg.AdminUser != "admin" {
		t.Errorf("AdminUser = %q, ожидается admin", cfg.AdminUser)
	}
	if cfg.JWTTTL != 8*time.Hour {
		t.Errorf("JWTTTL = %v, ожидается 8h", cfg.JWTTTL)
	}
	if cfg.UploadTimeout != 60*time.Second {
		t.Errorf("UploadTimeout = %v, ожидается 60s", cfg.UploadTimeout)
	}
	if cfg.ArchiveParallelism != 4 {
		t.Errorf("ArchiveParallelism = %d, ожидается 4", cfg.ArchiveParallelism)
	}
	if cfg.OrphanSweepInterval != 0 {
		t.Errorf("OrphanSweepInterval = %v, ожидается 0 (отключено)", cfg.OrphanSweepInterval)
	}
	if cfg.MailFrom != "Rivilog <onboarding@resend.dev>" {
		t.Errorf("MailFrom = %q", cfg.MailFrom)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_S3Backend(t *testing.T) {
	envs := minimalEnvs()
	envs["RV_BLOB_BACKEND"] = "s3"
	envs["RV_S3_ENDPOINT"] = "http://minio:9000/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.S3Bucket != "comprovantes" {
		t.Errorf("S3Bucket = %q, ожидается comprovantes", cfg.S3Bucket)
	}
	if cfg.S3Endpoint != "http://minio:9000" {
		t.Errorf("S3Endpoint = %q, ожидается без завершающего слэша", cfg.S3Endpoint)
	}
	if cfg.S3PublicURL != "http://minio:9000/comprovantes" {
		t.Errorf("S3PublicURL = %q", cfg.S3PublicURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"RV_DB_HOST", "RV_DB_NAME", "RV_DB_USER", "RV_DB_PASSWORD",
		"RV_ADMIN_PASSWORD_HASH", "RV_JWT_SECRET",
	}

	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, key)
			setEnvs(t, envs)
			t.Setenv(key, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() должен вернуть ошибку при отсутствии %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("ошибка %q не упоминает %s", err, key)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт вне диапазона", "RV_PORT", "70000"},
		{"порт не число", "RV_PORT", "abc"},
		{"уровень логирования", "RV_LOG_LEVEL", "verbose"},
		{"формат логов", "RV_LOG_FORMAT", "xml"},
		{"режим SSL", "RV_DB_SSL_MODE", "maybe"},
		{"backend хранилища", "RV_BLOB_BACKEND", "ftp"},
		{"короткий секрет", "RV_JWT_SECRET", "short"},
		{"не bcrypt", "RV_ADMIN_PASSWORD_HASH", "plaintext"},
		{"длительность", "RV_UPLOAD_TIMEOUT", "soon"},
		{"параллелизм", "RV_ARCHIVE_PARALLELISM", "0"},
		{"размер файла", "RV_MAX_UPLOAD_SIZE", "-1"},
		{"размер кэша сессий", "RV_SESSION_CACHE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() должен вернуть ошибку для %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBName: "rivilog",
		DBUser: "u", DBPassword: "p", DBSSLMode: "require",
	}
	want := "host=db port=5433 dbname=rivilog user=u password=p sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
	wantURL := "pgx5://u:p@db:5433/rivilog?sslmode=require"
	if got := cfg.MigrateURL(); got != wantURL {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, wantURL)
	}
}

func TestSecureCookie(t *testing.T) {
	if (&Config{PublicBaseURL: "http://localhost:8080"}).SecureCookie() {
		t.Error("SecureCookie() = true для http")
	}
	if !(&Config{PublicBaseURL: "https://rivilog.example.com"}).SecureCookie() {
		t.Error("SecureCookie() = false для https")
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		cfg := &Config{LogLevel: slog.LevelDebug, LogFormat: format}
		logger := SetupLogger(cfg)
		if logger == nil {
			t.Fatalf("SetupLogger(%s) вернул nil", format)
		}
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			t.Errorf("SetupLogger(%s): уровень debug должен быть включён", format)
		}
	}
}
