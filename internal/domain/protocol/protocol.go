// Пакет protocol — генерация человекочитаемого протокола заявки
// вида RIV-<год>-<5 символов base36>.
//
// Уникальность генератор не проверяет: при коллизии запись отклоняется
// уникальным индексом в PostgreSQL.
package protocol

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"time"
)

const (
	prefix     = "RIV"
	suffixLen  = 5
	alphabet36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var pattern = regexp.MustCompile(`^RIV-\d{4}-[A-Z0-9]{5}$`)

// Generator выдаёт протоколы. Часы и источник случайности подменяются в тестах.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

// NewGenerator создаёт генератор на системных часах и crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, random: rand.Reader}
}

// NewGeneratorWith создаёт генератор с заданными часами и источником случайности.
func NewGeneratorWith(now func() time.Time, random io.Reader) *Generator {
	return &Generator{now: now, random: random}
}

// Next возвращает новый протокол.
func (g *Generator) Next() (string, error) {
	max := big.NewInt(int64(len(alphabet36)))
	suffix := make([]byte, suffixLen)
	for i := range suffix {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("ошибка генерации протокола: %w", err)
		}
		suffix[i] = alphabet36[n.Int64()]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, g.now().Year(), suffix), nil
}

// Valid проверяет формат протокола.
func Valid(p string) bool {
	return pattern.MatchString(p)
}
