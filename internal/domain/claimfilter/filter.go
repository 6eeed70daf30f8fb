// Пакет claimfilter — отбор заявок по критериям администратора
// и подсчёт итоговой суммы.
package claimfilter

import (
	"strings"
	"time"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

// Criteria — критерии отбора. Нулевое значение (с Operation = OperationAll
// или пустой операцией) пропускает все заявки.
type Criteria struct {
	// Query — подстрока без учёта регистра в имени водителя, госномере или протоколе.
	Query string
	// Operation — конкретная операция или model.OperationAll.
	Operation model.Operation
	// Start, End — включительные границы даты поездки; nil — без ограничения.
	Start *time.Time
	End   *time.Time
}

// Result — отобранные заявки и итог.
type Result struct {
	Claims []*model.Claim
	Total  model.Money
	Count  int
}

// Matches проверяет, проходит ли заявка критерии.
func (c Criteria) Matches(claim *model.Claim) bool {
	// Запрос сравнивается как есть, пробелы тоже часть подстроки
	if q := strings.ToLower(c.Query); q != "" {
		if !strings.Contains(strings.ToLower(claim.DriverName), q) &&
			!strings.Contains(strings.ToLower(claim.Plate), q) &&
			!strings.Contains(strings.ToLower(claim.Protocol), q) {
			return false
		}
	}

	if c.Operation != "" && c.Operation != model.OperationAll && claim.Operation != c.Operation {
		return false
	}

	if c.Start != nil || c.End != nil {
		// Заявка без даты не попадает в ограниченный по датам отбор
		if claim.TripDate.IsZero() {
			return false
		}
		day := dateOnly(claim.TripDate)
		if c.Start != nil && day.Before(dateOnly(*c.Start)) {
			return false
		}
		if c.End != nil && day.After(dateOnly(*c.End)) {
			return false
		}
	}

	return true
}

// Filter возвращает заявки, прошедшие критерии, в исходном порядке.
func Filter(claims []*model.Claim, c Criteria) []*model.Claim {
	result := make([]*model.Claim, 0, len(claims))
	for _, claim := range claims {
		if c.Matches(claim) {
			result = append(result, claim)
		}
	}
	return result
}

// Total суммирует суммы заявок; отсутствующая сумма считается нулём.
// Сложение целых сентаво не зависит от порядка.
func Total(claims []*model.Claim) model.Money {
	var sum model.Money
	for _, claim := range claims {
		sum += claim.AmountOrZero()
	}
	return sum
}

// Aggregate отбирает заявки и считает итог.
func Aggregate(claims []*model.Claim, c Criteria) Result {
	filtered := Filter(claims, c)
	return Result{
		Claims: filtered,
		Total:  Total(filtered),
		Count:  len(filtered),
	}
}

// dateOnly отбрасывает время, сохраняя календарную дату в исходной зоне.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
