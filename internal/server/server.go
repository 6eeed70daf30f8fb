// Пакет server — HTTP-сервер Rivilog с graceful shutdown.
// Без TLS: TLS termination на обратном прокси.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/handlers"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/middleware"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/openapi"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/config"
)

// Server — HTTP-сервер Rivilog.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// jwtAuth защищает административные маршруты (nil — без проверки, для тестов).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) (*Server, error) {
	router, err := NewRouter(logger, handler, jwtAuth)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Загрузка вложений и выгрузка архива длятся дольше обычного запроса
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// NewRouter собирает chi-роутер: метрики, журнал запросов, проверка
// запросов по OpenAPI контракту и маршруты API.
func NewRouter(logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) (chi.Router, error) {
	contract, err := openapi.NewRouter()
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI контракта: %w", err)
	}

	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RequestValidator(contract, logger))

	var adminAuth func(http.Handler) http.Handler
	if jwtAuth != nil {
		adminAuth = jwtAuth.Middleware()
	}
	handlers.HandlerFromMux(handler, router, adminAuth)

	return router, nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	return s.Shutdown()
}

// Shutdown останавливает приём запросов и ждёт завершения текущих
// не дольше cfg.ShutdownTimeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
