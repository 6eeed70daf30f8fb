// Пакет mask — нормализация пользовательского ввода мастера заявки
// (телефон, госномер, сумма, e-mail) и проверки их полноты.
// Все функции чистые и не зависят от состояния.
package mask

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

const (
	// PhoneMaxDigits — DDD + номер с девяткой.
	PhoneMaxDigits = 11
	// PhoneCompleteLen — длина "(DD) DDDD-DDDD", минимальный полный номер.
	PhoneCompleteLen = 14
	// PlateLen — длина госномера (старый и Mercosul формат).
	PlateLen = 7
	// currencyMaxDigits ограничивает сумму 9 999 999 999,99: столбец valor — NUMERIC(12, 2).
	currencyMaxDigits = 12
)

// ErrInvalidAmount — строка суммы не разбирается.
var ErrInvalidAmount = errors.New("некорректная сумма")

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	brl = message.NewPrinter(language.BrazilianPortuguese)
)

// digitsOnly оставляет в строке только ASCII-цифры.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// MaskPhone форматирует телефон как "(DD) DDDDD-DDDD" (11 цифр)
// или "(DD) DDDD-DDDD" (10 цифр). Пока введено не больше двух цифр,
// возвращаются сами цифры.
func MaskPhone(raw string) string {
	d := digitsOnly(raw)
	if len(d) > PhoneMaxDigits {
		d = d[:PhoneMaxDigits]
	}
	if len(d) <= 2 {
		return d
	}

	area, rest := d[:2], d[2:]
	switch {
	case len(rest) <= 4:
		return fmt.Sprintf("(%s) %s", area, rest)
	case len(d) < PhoneMaxDigits:
		return fmt.Sprintf("(%s) %s-%s", area, rest[:4], rest[4:])
	default:
		return fmt.Sprintf("(%s) %s-%s", area, rest[:5], rest[5:])
	}
}

// PhoneComplete сообщает, достиг ли отформатированный телефон полной длины.
func PhoneComplete(masked string) bool {
	return len(masked) >= PhoneCompleteLen
}

// MaskPlate приводит госномер к верхнему регистру, удаляет всё,
// кроме латинских букв и цифр, и обрезает до 7 символов.
func MaskPlate(raw string) string {
	up := strings.ToUpper(raw)
	var b strings.Builder
	for i := 0; i < len(up) && b.Len() < PlateLen; i++ {
		c := up[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// PlateComplete сообщает, что госномер состоит ровно из 7 символов.
func PlateComplete(masked string) bool {
	return len(masked) == PlateLen
}

// MaskCurrency интерпретирует введённые цифры как сентаво: последние две
// цифры — дробная часть. Результат форматируется по правилам pt-BR
// ("1.234,56"). Без цифр возвращается пустая строка.
func MaskCurrency(raw string) string {
	d := digitsOnly(raw)
	if len(d) > currencyMaxDigits {
		d = d[:currencyMaxDigits]
	}
	if d == "" {
		return ""
	}
	cents, err := strconv.ParseInt(d, 10, 64)
	if err != nil {
		return ""
	}
	return FormatMoney(model.Money(cents))
}

// FormatMoney форматирует сумму по правилам pt-BR без символа валюты.
func FormatMoney(m model.Money) string {
	return brl.Sprintf("%.2f", m.Reais())
}

// AmountHasCents сообщает, что сумма указана и не оканчивается на ",00".
// Платные дороги почти никогда не стоят целое число реалов, поэтому
// нулевые сентаво считаются ошибкой ввода.
func AmountHasCents(masked string) bool {
	return masked != "" && !strings.HasSuffix(masked, ",00")
}

// ParseAmount разбирает сумму в формате pt-BR ("1.234,56") в сентаво.
// Точки-разделители тысяч удаляются, запятая считается десятичной.
func ParseAmount(masked string) (model.Money, error) {
	s := strings.ReplaceAll(strings.TrimSpace(masked), ".", "")
	if s == "" {
		return 0, fmt.Errorf("%w: пустое значение", ErrInvalidAmount)
	}

	intPart, fracPart, _ := strings.Cut(s, ",")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 || digitsOnly(intPart) != intPart || digitsOnly(fracPart) != fracPart {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, masked)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	cents, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, masked)
	}
	return model.Money(cents), nil
}

// NormalizeEmail убирает пробелы по краям и приводит адрес к нижнему регистру.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidEmail проверяет адрес по упрощённому шаблону local@domain.tld.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
