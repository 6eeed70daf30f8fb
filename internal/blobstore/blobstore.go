// Пакет blobstore — хранилище файлов-подтверждений (квитанций и выписок).
//
// Два backend'а:
//   - LocalStore: каталог на диске, файлы отдаются сервисом по /files/*
//   - S3Store: любое S3-совместимое хранилище (AWS, MinIO, Supabase Storage)
//
// Файлы адресуются плоским именем без каталогов; публичная ссылка
// строится из имени, и имя восстанавливается из последнего сегмента ссылки.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPath — имя файла содержит недопустимые символы.
var ErrInvalidPath = errors.New("недопустимое имя файла")

// Object — файл в хранилище.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store — контракт хранилища, которым пользуются сервисы.
type Store interface {
	// Upload записывает файл под именем path.
	Upload(ctx context.Context, path, contentType string, r io.Reader) error
	// PublicURL возвращает ссылку, по которой файл доступен через HTTP GET.
	PublicURL(path string) string
	// PathFromURL восстанавливает имя файла из публичной ссылки.
	PathFromURL(rawURL string) (string, bool)
	// Remove удаляет файлы. Отсутствующие файлы ошибкой не считаются.
	Remove(ctx context.Context, paths []string) error
	// List перечисляет все файлы хранилища.
	List(ctx context.Context) ([]Object, error)
}

// Виды вложений, определяющие префикс имени.
const (
	KindReceipt   = "foto"
	KindStatement = "pdf"
)

// ObjectName формирует имя файла: {вид}-{unix ms}-{госномер}-{uuid8}.{ext}
// Пример: foto-1715347200000-ABC1D23-a1b2c3d4.jpg
func ObjectName(kind, plate, ext string, now time.Time) string {
	plate = sanitize(plate)
	ext = strings.ToLower(sanitize(strings.TrimPrefix(ext, ".")))
	return fmt.Sprintf("%s-%d-%s-%s.%s", kind, now.UnixMilli(), plate, uuid.New().String()[:8], ext)
}

// ValidatePath проверяет, что имя файла плоское и безопасное.
func ValidatePath(p string) error {
	if p == "" || p == "." || p == ".." || strings.HasPrefix(p, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, r := range p {
		if !isSafeRune(r) && r != '.' {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}

// pathFromURL берёт последний сегмент пути ссылки.
func pathFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", false
	}
	name := path.Base(u.Path)
	if ValidatePath(name) != nil {
		return "", false
	}
	return name, true
}

// sanitize оставляет только латинские буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if isSafeRune(r) {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

func isSafeRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_'
}

// ctxReader прерывает чтение при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
