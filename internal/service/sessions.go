// sessions.go — хранилище сессий мастера подачи заявки.
// Обёртка над hashicorp/golang-lru/v2/expirable: незавершённые сессии
// вытесняются по TTL или при переполнении.
package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_sessions_created_total",
		Help: "Общее количество созданных сессий мастера.",
	})
	sessionLookupMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_session_lookup_misses_total",
		Help: "Обращения к отсутствующим или истёкшим сессиям.",
	})
)

// Session — одна сессия мастера.
type Session struct {
	ID        string
	Machine   *wizard.Machine
	CreatedAt time.Time

	// busy — идёт фиксация заявки.
	busy atomic.Bool
}

// Busy сообщает, что фиксация заявки выполняется.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// SessionStore — LRU сессий с автоматическим TTL.
// Сессии живут в памяти одного экземпляра сервиса.
// Сессия, у которой идёт фиксация, закреплена и не теряется при вытеснении.
type SessionStore struct {
	cache *expirable.LRU[string, *Session]

	mu     sync.Mutex
	pinned map[string]*Session
}

// NewSessionStore создаёт хранилище на maxSize сессий с временем жизни ttl.
func NewSessionStore(maxSize int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache:  expirable.NewLRU[string, *Session](maxSize, nil, ttl),
		pinned: make(map[string]*Session),
	}
}

// Create открывает новую сессию на шаге intro.
func (s *SessionStore) Create() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		Machine:   wizard.New(),
		CreatedAt: time.Now().UTC(),
	}
	s.cache.Add(sess.ID, sess)
	sessionsCreatedTotal.Inc()
	return sess
}

// Get возвращает сессию по ID.
func (s *SessionStore) Get(id string) (*Session, error) {
	if sess, ok := s.cache.Get(id); ok {
		return sess, nil
	}
	s.mu.Lock()
	sess, ok := s.pinned[id]
	s.mu.Unlock()
	if !ok {
		sessionLookupMissesTotal.Inc()
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Pin закрепляет сессию на время фиксации.
func (s *SessionStore) Pin(sess *Session) {
	s.mu.Lock()
	s.pinned[sess.ID] = sess
	s.mu.Unlock()
}

// Unpin снимает закрепление. Вытесненная за время фиксации сессия
// возвращается в кэш, чтобы водитель увидел результат.
func (s *SessionStore) Unpin(sess *Session) {
	s.mu.Lock()
	delete(s.pinned, sess.ID)
	s.mu.Unlock()
	if !s.cache.Contains(sess.ID) {
		s.cache.Add(sess.ID, sess)
	}
}

// Remove удаляет сессию.
func (s *SessionStore) Remove(id string) {
	s.cache.Remove(id)
}

// Len возвращает количество живых сессий.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}
