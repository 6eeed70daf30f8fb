// handler.go — основной обработчик API. Объединяет доменные обработчики
// и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/export"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/service"
)

// Options — зависимости APIHandler.
type Options struct {
	Health      *HealthHandler
	Submissions *service.SubmissionService
	Claims      *service.ClaimService
	Auth        *service.AuthService
	Sweeper     *service.OrphanSweeper
	Archive     *export.ArchiveExporter
	// Files — локальное хранилище для /files/*; nil при S3.
	Files *blobstore.LocalStore
	// SecureCookie — выставлять Secure у cookie сессии (сервис за HTTPS).
	SecureCookie bool
	// MaxUploadSize — лимит одного файла мастера.
	MaxUploadSize int64
}

// APIHandler — основной обработчик API Rivilog.
type APIHandler struct {
	health        *HealthHandler
	submissions   *service.SubmissionService
	claims        *service.ClaimService
	auth          *service.AuthService
	sweeper       *service.OrphanSweeper
	archive       *export.ArchiveExporter
	files         *blobstore.LocalStore
	secureCookie  bool
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(opts Options, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:        opts.Health,
		submissions:   opts.Submissions,
		claims:        opts.Claims,
		auth:          opts.Auth,
		sweeper:       opts.Sweeper,
		archive:       opts.Archive,
		files:         opts.Files,
		secureCookie:  opts.SecureCookie,
		maxUploadSize: opts.MaxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. Неизвестные поля отклоняются.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Сообщения ошибок фиксации показываются водителю и потому на португальском.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var guardErr *wizard.GuardError
	var transErr *wizard.TransitionError

	switch {
	case errors.As(err, &guardErr):
		apierrors.FieldError(w, guardErr.Field, guardErr.Message)
	case errors.As(err, &transErr):
		apierrors.InvalidTransition(w, transErr.Message)
	case errors.Is(err, service.ErrSessionNotFound):
		apierrors.NotFound(w, "Sessão não encontrada ou expirada. Comece novamente.")
	case errors.Is(err, service.ErrBusy):
		apierrors.SubmissionBusy(w, "Envio em andamento. Aguarde.")
	case errors.Is(err, service.ErrUpload):
		apierrors.UploadFailed(w, "Erro ao enviar os arquivos. Tente novamente.")
	case errors.Is(err, service.ErrPersistence):
		h.logger.Error("Ошибка БД", slog.String("error", err.Error()))
		apierrors.PersistenceFailed(w, "Erro ao salvar o registro. Tente novamente.")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, "Неверный логин или пароль")
	case errors.Is(err, export.ErrEmptySelection):
		apierrors.EmptySelection(w, "Нет заявок для выгрузки")
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
