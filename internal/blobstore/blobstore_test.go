package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1715347200000)

	name := ObjectName(KindReceipt, "ABC1D23", ".JPG", now)
	re := regexp.MustCompile(`^foto-1715347200000-ABC1D23-[0-9a-f]{8}\.jpg$`)
	if !re.MatchString(name) {
		t.Errorf("ObjectName() = %q, не соответствует формату", name)
	}
	if err := ValidatePath(name); err != nil {
		t.Errorf("сгенерированное имя не проходит ValidatePath: %v", err)
	}

	// Небезопасные символы удаляются
	name = ObjectName(KindStatement, "../x y", "pdf", now)
	if !strings.HasPrefix(name, "pdf-1715347200000-xy-") {
		t.Errorf("ObjectName() = %q", name)
	}
}

func TestValidatePath(t *testing.T) {
	valid := []string{"foto-1-ABC1D23-abcd1234.jpg", "a.pdf", "file_1"}
	for _, p := range valid {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v, ожидается nil", p, err)
		}
	}
	invalid := []string{"", ".", "..", ".hidden", "a/b.jpg", "../etc/passwd", "a b.jpg", `a\b`}
	for _, p := range invalid {
		if err := ValidatePath(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ValidatePath(%q) = %v, ожидается ErrInvalidPath", p, err)
		}
	}
}

func TestPathFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://x.supabase.co/storage/v1/object/public/comprovantes/foto-1-ABC.jpg", "foto-1-ABC.jpg", true},
		{"http://localhost:8080/files/pdf-2-XYZ.pdf?download=1", "pdf-2-XYZ.pdf", true},
		{"http://localhost:8080/", "", false},
		{"::nonsense", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := pathFromURL(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("pathFromURL(%q) = (%q, %v), ожидается (%q, %v)", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

// --- LocalStore ---

func TestLocalStore_UploadListRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/files/")
	if err != nil {
		t.Fatalf("NewLocalStore() ошибка: %v", err)
	}
	ctx := context.Background()

	if err := store.Upload(ctx, "foto-1-ABC1D23.jpg", "image/jpeg", strings.NewReader("jpeg-bytes")); err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "foto-1-ABC1D23.jpg"))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("содержимое файла = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "foto-1-ABC1D23.jpg.tmp")); !os.IsNotExist(err) {
		t.Error("временный файл должен быть переименован")
	}

	url := store.PublicURL("foto-1-ABC1D23.jpg")
	if url != "http://localhost:8080/files/foto-1-ABC1D23.jpg" {
		t.Errorf("PublicURL() = %q", url)
	}
	if name, ok := store.PathFromURL(url); !ok || name != "foto-1-ABC1D23.jpg" {
		t.Errorf("PathFromURL() = %q, %v", name, ok)
	}

	// Незавершённая запись в список не попадает
	if err := os.WriteFile(filepath.Join(dir, "partial.tmp"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	objects, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(objects) != 1 || objects[0].Path != "foto-1-ABC1D23.jpg" || objects[0].Size != 10 {
		t.Errorf("List() = %+v", objects)
	}

	f, err := store.Open("foto-1-ABC1D23.jpg")
	if err != nil {
		t.Fatalf("Open() ошибка: %v", err)
	}
	f.Close()

	if err := store.Remove(ctx, []string{"foto-1-ABC1D23.jpg", "missing.jpg"}); err != nil {
		t.Fatalf("Remove() ошибка: %v", err)
	}
	if _, err := store.Open("foto-1-ABC1D23.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("после удаления ожидается ErrNotExist, получено %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://x/files")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Upload(ctx, "../evil.jpg", "", strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Upload(../evil.jpg) = %v, ожидается ErrInvalidPath", err)
	}
	if _, err := store.Open("../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Open(../etc/passwd) = %v, ожидается ErrInvalidPath", err)
	}
	if err := store.Remove(ctx, []string{"a/b"}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Remove(a/b) = %v, ожидается ErrInvalidPath", err)
	}
}

func TestLocalStore_UploadCancelled(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocalStore(dir, "http://x/files")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upload(ctx, "foto.jpg", "", strings.NewReader("data")); err == nil {
		t.Fatal("Upload() с отменённым контекстом должен вернуть ошибку")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("после ошибки в каталоге остались файлы: %d", len(entries))
	}
}

// --- S3Store ---

// fakeS3 — S3 в памяти.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	failKeys  map[string]bool
	pageSize  int
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), failKeys: make(map[string]bool)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.DeleteObjectsOutput{}
	for _, obj := range in.Delete.Objects {
		key := aws.ToString(obj.Key)
		if f.failKeys[key] {
			out.Errors = append(out.Errors, types.Error{Key: obj.Key, Message: aws.String("AccessDenied")})
			continue
		}
		delete(f.objects, key)
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Unix(1700000000, 0)),
		})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3Store_UploadListRemove(t *testing.T) {
	fake := newFakeS3()
	fake.pageSize = 2
	store := NewS3StoreWithClient(fake, "comprovantes", "http://minio:9000/comprovantes/")
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg", "c.pdf"} {
		// io.Reader без Seek — данные читаются в память
		r := io.MultiReader(strings.NewReader(name))
		if err := store.Upload(ctx, name, "image/jpeg", r); err != nil {
			t.Fatalf("Upload(%s) ошибка: %v", name, err)
		}
	}
	if string(fake.objects["a.jpg"]) != "a.jpg" {
		t.Errorf("содержимое объекта = %q", fake.objects["a.jpg"])
	}

	if got := store.PublicURL("a.jpg"); got != "http://minio:9000/comprovantes/a.jpg" {
		t.Errorf("PublicURL() = %q", got)
	}

	objects, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("List() вернул %d объектов, ожидается 3", len(objects))
	}
	if fake.listCalls != 2 {
		t.Errorf("ожидается 2 страницы, выполнено %d запросов", fake.listCalls)
	}

	fake.failKeys["b.jpg"] = true
	err = store.Remove(ctx, []string{"a.jpg", "b.jpg"})
	if err == nil || !strings.Contains(err.Error(), "b.jpg") {
		t.Errorf("Remove() = %v, ожидается ошибка по b.jpg", err)
	}
	if _, ok := fake.objects["a.jpg"]; ok {
		t.Error("a.jpg должен быть удалён")
	}
}

func TestS3Store_UploadError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("connection reset")
	store := NewS3StoreWithClient(fake, "b", "http://x/b")

	err := store.Upload(context.Background(), "a.jpg", "", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Upload() = %v, ожидается ошибка клиента", err)
	}
}
