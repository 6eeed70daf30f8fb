package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/notify"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- репозиторий в памяти ---

type fakeRepo struct {
	mu        sync.Mutex
	claims    []*model.Claim
	insertErr error
	listErr   error
	deleteErr error
}

func (r *fakeRepo) Insert(_ context.Context, c *model.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.claims {
		if existing.Protocol != "" && existing.Protocol == c.Protocol {
			return repository.ErrConflict
		}
	}
	c.CreatedAt = time.Now().UTC()
	r.claims = append(r.claims, c)
	return nil
}

func (r *fakeRepo) List(_ context.Context) ([]*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*model.Claim, len(r.claims))
	copy(out, r.claims)
	return out, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) GetByProtocol(_ context.Context, protocol string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.Protocol == protocol {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) Delete(_ context.Context, id string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return nil, r.deleteErr
	}
	for i, c := range r.claims {
		if c.ID == id {
			r.claims = append(r.claims[:i], r.claims[i+1:]...)
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- хранилище файлов в памяти ---

const fakeBlobBase = "http://blobs.test/comprovantes/"

type fakeObject struct {
	data    []byte
	modTime time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	uploadErr map[string]error // по префиксу имени (foto, pdf)
	removeErr error
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject), uploadErr: make(map[string]error)}
}

func (s *fakeStore) Upload(ctx context.Context, path, _ string, r io.Reader) error {
	for prefix, err := range s.uploadErr {
		if strings.HasPrefix(path, prefix) {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = fakeObject{data: data, modTime: time.Now()}
	return nil
}

func (s *fakeStore) PublicURL(path string) string {
	return fakeBlobBase + path
}

func (s *fakeStore) PathFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, fakeBlobBase) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, fakeBlobBase), true
}

func (s *fakeStore) Remove(_ context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, p := range paths {
		delete(s.objects, p)
		s.removed = append(s.removed, p)
	}
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blobstore.Object, 0, len(s.objects))
	for p, o := range s.objects {
		out = append(out, blobstore.Object{Path: p, Size: int64(len(o.data)), ModTime: o.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *fakeStore) put(path string, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = fakeObject{data: []byte("x"), modTime: modTime}
}

func (s *fakeStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// --- уведомления ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Dispatch(msg notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

// --- генератор протоколов ---

type fixedProtocols struct {
	values []string
	err    error
	i      int
}

func (g *fixedProtocols) Next() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.i >= len(g.values) {
		return "", errors.New("протоколы закончились")
	}
	p := g.values[g.i]
	g.i++
	return p, nil
}
