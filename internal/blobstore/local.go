package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore — файлы в каталоге на диске.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore создаёт хранилище в dir. baseURL — внешний адрес,
// по которому сервис отдаёт файлы (например, http://host:8080/files).
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload записывает файл.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *LocalStore) Upload(ctx context.Context, name, _ string, r io.Reader) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	fullPath := filepath.Join(s.dir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// PublicURL возвращает ссылку вида {baseURL}/{name}.
func (s *LocalStore) PublicURL(name string) string {
	return s.baseURL + "/" + name
}

// PathFromURL восстанавливает имя файла из ссылки.
func (s *LocalStore) PathFromURL(rawURL string) (string, bool) {
	return pathFromURL(rawURL)
}

// Remove удаляет файлы. Отсутствующие файлы пропускаются,
// ошибки по отдельным файлам объединяются.
func (s *LocalStore) Remove(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ValidatePath(name); err != nil {
			errs = append(errs, err)
			continue
		}
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("ошибка удаления файла %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// List перечисляет файлы каталога, пропуская незавершённые .tmp.
func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.dir, err)
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			continue
		}
		objects = append(objects, Object{
			Path:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

// Open открывает файл для отдачи по HTTP. Вызывающий код закрывает файл.
func (s *LocalStore) Open(name string) (*os.File, error) {
	if err := ValidatePath(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", os.ErrNotExist, name)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}
	return f, nil
}

// Dir возвращает путь к каталогу хранилища.
func (s *LocalStore) Dir() string {
	return s.dir
}
