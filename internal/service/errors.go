// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
)

var (
	// ErrValidation — ошибка валидации входных данных. *wizard.GuardError
	// также сопоставляется с ней.
	ErrValidation = wizard.ErrValidation
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт состояния (форма заблокирована).
	ErrConflict = errors.New("конфликт состояния")
	// ErrBusy — фиксация заявки этой сессии уже выполняется.
	ErrBusy = errors.New("заявка уже отправляется")
	// ErrSessionNotFound — сессия мастера не найдена или истекла.
	ErrSessionNotFound = errors.New("сессия не найдена или истекла")
	// ErrUpload — файл не удалось загрузить в хранилище при фиксации.
	ErrUpload = errors.New("ошибка загрузки файла")
	// ErrPersistence — ошибка записи или удаления заявки в БД.
	ErrPersistence = errors.New("ошибка сохранения заявки")
	// ErrInvalidCredentials — неверный логин или пароль администратора.
	ErrInvalidCredentials = errors.New("неверные учётные данные")
)

// PartialDeleteError — заявка удалена, но часть файлов осталась в хранилище.
type PartialDeleteError struct {
	ClaimID  string
	Protocol string
	// Orphaned — пути (или ссылки) файлов, которые могли остаться.
	Orphaned []string
	Err      error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("заявка %s удалена, файлы не удалены (%s): %v",
		e.ClaimID, strings.Join(e.Orphaned, ", "), e.Err)
}

func (e *PartialDeleteError) Unwrap() error {
	return e.Err
}
