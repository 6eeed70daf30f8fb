// export.go — выгрузка отобранных заявок: таблица XLSX и ZIP-архив файлов.
// Фильтр тот же, что у GET /api/v1/admin/claims.
package handlers

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/claimfilter"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/export"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZIP  = "application/zip"
)

// selectClaims выполняет отбор для выгрузки. При ошибке ответ уже записан.
func (h *APIHandler) selectClaims(w http.ResponseWriter, r *http.Request) (claimfilter.Result, bool) {
	criteria, err := bindCriteria(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return claimfilter.Result{}, false
	}
	result, err := h.claims.List(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, err)
		return claimfilter.Result{}, false
	}
	if len(result.Claims) == 0 {
		h.writeServiceError(w, export.ErrEmptySelection)
		return claimfilter.Result{}, false
	}
	return result, true
}

// ExportSpreadsheet — GET /api/v1/admin/claims/export/spreadsheet.
// Таблица собирается в памяти целиком, чтобы ошибка не оборвала ответ.
func (h *APIHandler) ExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	result, ok := h.selectClaims(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSpreadsheet(&buf, result.Claims); err != nil {
		h.writeServiceError(w, err)
		return
	}

	setAttachment(w, contentTypeXLSX, export.SpreadsheetFileName(time.Now()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ExportArchive — GET /api/v1/admin/claims/export/archive.
// Архив пишется в ответ потоково; недоступные файлы заменяются заглушками.
func (h *APIHandler) ExportArchive(w http.ResponseWriter, r *http.Request) {
	result, ok := h.selectClaims(w, r)
	if !ok {
		return
	}

	setAttachment(w, contentTypeZIP, export.ArchiveFileName(time.Now()))
	w.WriteHeader(http.StatusOK)

	report, err := h.archive.Write(r.Context(), w, result.Claims)
	if err != nil {
		// Заголовки уже отправлены, остаётся только оборвать ответ
		h.logger.Error("Ошибка сборки архива",
			slog.Int("claims", len(result.Claims)),
			slog.String("error", err.Error()),
		)
		return
	}
	if report.Placeholders > 0 {
		h.logger.Warn("Архив выгружен с заглушками",
			slog.Int("files", report.Files),
			slog.Int("placeholders", report.Placeholders),
		)
	}
}

func setAttachment(w http.ResponseWriter, contentType, fileName string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Cache-Control", "no-store")
}
