package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers
// и возвращает конфигурацию подключения к нему.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("rivilog_test"),
		postgres.WithUsername("rivilog"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, _ := strconv.Atoi(port.Port())

	return &config.Config{
		DBHost:     host,
		DBPort:     portNum,
		DBName:     "rivilog_test",
		DBUser:     "rivilog",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMigrateAndConnect(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}
	// Повторный запуск — ErrNoChange не является ошибкой
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate() ошибка: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() ошибка: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'pedagios')`,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("ошибка проверки таблицы: %v", err)
	}
	if !exists {
		t.Error("таблица pedagios не создана")
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидается ok", status, msg)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := &config.Config{
		DBHost: "127.0.0.1", DBPort: 1, DBName: "x",
		DBUser: "x", DBPassword: "x", DBSSLMode: "disable",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Connect(ctx, cfg, testLogger()); err == nil {
		t.Error("Connect() к недоступному серверу должен вернуть ошибку")
	}
}
