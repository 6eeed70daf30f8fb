// Пакет errors — ответы с ошибками в едином формате Rivilog:
// {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками пишутся через WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	CodeUploadFailed      = "UPLOAD_FAILED"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodePartialDelete     = "PARTIAL_DELETE"
	CodeEmptySelection    = "EMPTY_SELECTION"
	CodeSubmissionBusy    = "SUBMISSION_BUSY"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки. Field заполняется для ошибок валидации поля формы,
// Details — для частичного удаления (оставшиеся файлы).
type errorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Details []string `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// FieldError — 422 значение поля формы не прошло проверку шага мастера.
func FieldError(w http.ResponseWriter, field, message string) {
	write(w, http.StatusUnprocessableEntity, errorDetail{
		Code:    CodeValidationError,
		Message: message,
		Field:   field,
	})
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Conflict — 409 конфликт состояния.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidTransition — 409 событие недопустимо на текущем шаге мастера.
func InvalidTransition(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidTransition, message)
}

// SubmissionBusy — 409 заявка этой сессии уже отправляется.
func SubmissionBusy(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeSubmissionBusy, message)
}

// UploadFailed — 502 хранилище файлов не приняло вложение.
func UploadFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeUploadFailed, message)
}

// PersistenceFailed — 500 ошибка записи в БД.
func PersistenceFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodePersistenceFailed, message)
}

// PartialDelete — 207 заявка удалена, часть файлов осталась в хранилище.
func PartialDelete(w http.ResponseWriter, message string, orphaned []string) {
	write(w, http.StatusMultiStatus, errorDetail{
		Code:    CodePartialDelete,
		Message: message,
		Details: orphaned,
	})
}

// EmptySelection — 404 отбор пуст, выгружать нечего.
func EmptySelection(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeEmptySelection, message)
}

// ServiceUnavailable — 503 операция временно недоступна.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
