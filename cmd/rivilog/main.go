// Точка входа Rivilog — приём заявок на возмещение расходов на платные дороги.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт хранилище файлов, сервисный слой и API handlers,
// запускает фоновые задачи (очистка файлов, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/handlers"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/middleware"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/config"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/database"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/protocol"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/export"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/notify"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/repository"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/server"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Rivilog запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище файлов
	var (
		blobs blobstore.Store
		files *blobstore.LocalStore
	)
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		s3Store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Error("Ошибка создания S3-хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blobs = s3Store
		logger.Info("Хранилище файлов: S3", slog.String("bucket", cfg.S3Bucket))
	default:
		files, err = blobstore.NewLocalStore(cfg.BlobLocalDir, cfg.PublicBaseURL+"/files")
		if err != nil {
			logger.Error("Ошибка создания локального хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blobs = files
		logger.Info("Хранилище файлов: локальный каталог", slog.String("dir", cfg.BlobLocalDir))
	}

	// 6. Repository
	claimRepo := repository.NewClaimRepository(pool)

	// 7. Уведомления водителю
	var sender notify.Sender
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
	} else {
		logger.Warn("RV_RESEND_API_KEY не задан, уведомления только пишутся в лог")
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyTimeout, logger)

	// 8. Services
	claimCache := service.NewClaimCache(cfg.ClaimCacheSize, cfg.ClaimCacheTTL)
	submissionSvc := service.NewSubmissionService(
		service.NewSessionStore(cfg.SessionCacheSize, cfg.SessionTTL),
		claimRepo,
		blobs,
		protocol.NewGenerator(),
		dispatcher,
		service.SubmissionConfig{
			UploadTimeout: cfg.UploadTimeout,
			MaxUploadSize: cfg.MaxUploadSize,
		},
		logger,
	)
	claimSvc := service.NewClaimService(claimRepo, blobs, claimCache, logger)
	sweeper := service.NewOrphanSweeper(claimRepo, blobs, cfg.OrphanGrace, cfg.OrphanSweepInterval, logger)
	archive := export.NewArchiveExporter(
		export.NewHTTPFetcher(cfg.FetchTimeout),
		cfg.ArchiveParallelism,
		cfg.FetchTimeout,
		logger,
	)

	// 9. JWT middleware: собственный HMAC или JWKS внешнего IdP
	var (
		jwtAuth *middleware.JWTAuth
		authSvc *service.AuthService
	)
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWKSAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.FetchTimeout, cfg.JWTTTL/2, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT: ключи внешнего IdP, вход по паролю отключён",
			slog.String("jwks_url", cfg.JWTJWKSURL),
		)
	} else {
		jwtAuth = middleware.NewHMACAuth(cfg.JWTSecret, cfg.JWTIssuer, logger)
		authSvc = service.NewAuthService(cfg.AdminUser, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, logger)
	}

	// 10. Фоновая очистка осиротевших файлов
	sweeper.Start(ctx)

	// 10.1 topologymetrics — мониторинг зависимостей (PostgreSQL + хранилище)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"rivilog",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.S3HealthURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Health и API handler
	var deps handlers.DependencyHealth
	if dephealthSvc != nil {
		deps = dephealthSvc
	}
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), deps)

	apiHandler := handlers.NewAPIHandler(handlers.Options{
		Health:        healthHandler,
		Submissions:   submissionSvc,
		Claims:        claimSvc,
		Auth:          authSvc,
		Sweeper:       sweeper,
		Archive:       archive,
		Files:         files,
		SecureCookie:  cfg.SecureCookie(),
		MaxUploadSize: cfg.MaxUploadSize,
	}, logger)

	// 12. Создание и запуск HTTP-сервера
	srv, err := server.New(cfg, logger, apiHandler, jwtAuth)
	if err != nil {
		logger.Error("Ошибка создания сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	sweeper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	// Дожидаемся отправки уже поставленных уведомлений
	dispatcher.Close()

	logger.Info("Rivilog остановлен")
}
