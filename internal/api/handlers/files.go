// files.go — GET /files/{name}: отдача файлов локального хранилища.
// Ссылки заявок при локальном backend указывают сюда; сборщик архива
// скачивает файлы тем же путём.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
)

// GetFile — GET /files/{name}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		apierrors.NotFound(w, "Файл не найден")
		return
	}

	name := chi.URLParam(r, "name")
	f, err := h.files.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, blobstore.ErrInvalidPath) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка чтения файла",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	// ServeContent определяет Content-Type по расширению и поддерживает Range
	http.ServeContent(w, r, name, info.ModTime(), f)
}
