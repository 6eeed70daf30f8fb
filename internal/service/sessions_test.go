package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
)

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(2, time.Hour)

	a := store.Create()
	if a.Machine.Current() != wizard.StepIntro {
		t.Errorf("новая сессия на шаге %s", a.Machine.Current())
	}
	got, err := store.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	// Переполнение вытесняет самую старую сессию
	store.Create()
	store.Create()
	if store.Len() != 2 {
		t.Errorf("Len() = %d, ожидается 2", store.Len())
	}
	if _, err := store.Get(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("вытесненная сессия: %v", err)
	}
}

func TestSessionStore_TTL(t *testing.T) {
	store := NewSessionStore(10, 20*time.Millisecond)
	s := store.Create()

	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("истёкшая сессия: %v", err)
	}
}

func TestSessionStore_PinnedSurvivesEviction(t *testing.T) {
	store := NewSessionStore(1, time.Hour)
	a := store.Create()
	store.Pin(a)

	b := store.Create()
	got, err := store.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("закреплённая сессия: %v, %v", got, err)
	}
	if _, err := store.Get(b.ID); err != nil {
		t.Errorf("новая сессия: %v", err)
	}

	store.Unpin(a)
	if got, err := store.Get(a.ID); err != nil || got != a {
		t.Errorf("после Unpin сессия должна вернуться в кэш: %v, %v", got, err)
	}
}
