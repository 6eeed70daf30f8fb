package protocol

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNext_Format(t *testing.T) {
	g := NewGenerator()
	year := time.Now().Year()

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		p, err := g.Next()
		if err != nil {
			t.Fatalf("Next() ошибка: %v", err)
		}
		if !Valid(p) {
			t.Fatalf("протокол %q не соответствует формату", p)
		}
		if !strings.HasPrefix(p, fmt.Sprintf("RIV-%d-", year)) {
			t.Fatalf("протокол %q должен содержать текущий год %d", p, year)
		}
		seen[p] = true
	}
	// 36^5 ≈ 60 млн вариантов: на 500 попытках совпадений быть не должно
	if len(seen) < 499 {
		t.Errorf("слишком много совпадений: %d уникальных из 500", len(seen))
	}
}

func TestNext_Deterministic(t *testing.T) {
	fixed := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	// Нулевые байты дают минимальный индекс алфавита
	g := NewGeneratorWith(fixed, bytes.NewReader(make([]byte, 64)))

	p, err := g.Next()
	if err != nil {
		t.Fatalf("Next() ошибка: %v", err)
	}
	if p != "RIV-2024-00000" {
		t.Errorf("Next() = %q, ожидается RIV-2024-00000", p)
	}
}

func TestNext_RandomFailure(t *testing.T) {
	g := NewGeneratorWith(time.Now, bytes.NewReader(nil))
	if _, err := g.Next(); err == nil {
		t.Error("Next() должен вернуть ошибку при исчерпании источника случайности")
	}
}

func TestValid(t *testing.T) {
	tests := map[string]bool{
		"RIV-2025-AB12C":  true,
		"RIV-2025-ab12c":  false,
		"RIV-25-AB12C":    false,
		"RIV-2025-AB12":   false,
		"XYZ-2025-AB12C":  false,
		"RIV-2025-AB12C ": false,
	}
	for in, want := range tests {
		if got := Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, ожидается %v", in, got, want)
		}
	}
}
