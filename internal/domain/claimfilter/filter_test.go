package claimfilter

import (
	"reflect"
	"testing"
	"time"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

func money(v int64) *model.Money {
	m := model.Money(v)
	return &m
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

// fixture — набор заявок в порядке created_at DESC.
func fixture() []*model.Claim {
	return []*model.Claim{
		{ID: "1", Protocol: "RIV-2025-AAAAA", DriverName: "Maria Silva", Plate: "ABC1D23",
			Operation: model.OperationJT, TripDate: day(2025, 5, 10), Amount: money(1250)},
		{ID: "2", Protocol: "RIV-2025-BBBBB", DriverName: "João Souza", Plate: "XYZ9K87",
			Operation: model.OperationImile, TripDate: day(2025, 5, 12), Amount: money(890)},
		{ID: "3", Protocol: "", DriverName: "Carlos Lima", Plate: "QWE1234",
			Operation: "", TripDate: time.Time{}, Amount: nil},
		{ID: "4", Protocol: "RIV-2025-CCCCC", DriverName: "Ana Maria", Plate: "JKL5M67",
			Operation: model.OperationJT, TripDate: day(2025, 6, 1), Amount: money(2035)},
	}
}

func ids(claims []*model.Claim) []string {
	out := make([]string, len(claims))
	for i, c := range claims {
		out[i] = c.ID
	}
	return out
}

func TestFilter_EmptyCriteriaIsIdentity(t *testing.T) {
	claims := fixture()
	for _, c := range []Criteria{{}, {Operation: model.OperationAll}} {
		got := Filter(claims, c)
		if !reflect.DeepEqual(ids(got), ids(claims)) {
			t.Errorf("Filter(%+v) = %v, ожидается исходный порядок %v", c, ids(got), ids(claims))
		}
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"имя без регистра", Criteria{Query: "maria"}, []string{"1", "4"}},
		{"госномер", Criteria{Query: "xyz9"}, []string{"2"}},
		{"протокол", Criteria{Query: "riv-2025-ccc"}, []string{"4"}},
		{"пробелы в запросе не обрезаются", Criteria{Query: "  abc1d23 "}, []string{}},
		{"пробел между словами", Criteria{Query: "a m"}, []string{"4"}},
		{"двойной пробел", Criteria{Query: "  "}, []string{}},
		{"один пробел", Criteria{Query: " "}, []string{"1", "2", "3", "4"}},
		{"операция", Criteria{Operation: model.OperationJT}, []string{"1", "4"}},
		{"операция и запрос", Criteria{Operation: model.OperationJT, Query: "ana"}, []string{"4"}},
		{"начало включительно", Criteria{Start: ptr(day(2025, 5, 12))}, []string{"2", "4"}},
		{"конец включительно", Criteria{End: ptr(day(2025, 5, 12))}, []string{"1", "2"}},
		{"диапазон", Criteria{Start: ptr(day(2025, 5, 11)), End: ptr(day(2025, 5, 31))}, []string{"2"}},
		{"граница со временем", Criteria{End: ptr(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))}, []string{"1"}},
		{"ничего", Criteria{Query: "inexistente"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(fixture(), tt.c))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() = %v, ожидается %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Idempotent(t *testing.T) {
	criteria := []Criteria{
		{Query: "a"},
		{Operation: model.OperationImile},
		{Start: ptr(day(2025, 5, 1)), End: ptr(day(2025, 5, 31)), Query: "riv"},
	}
	for _, c := range criteria {
		once := Filter(fixture(), c)
		twice := Filter(once, c)
		if !reflect.DeepEqual(ids(once), ids(twice)) {
			t.Errorf("Filter не идемпотентен для %+v: %v != %v", c, ids(once), ids(twice))
		}
	}
}

func TestAggregate_SumInvariant(t *testing.T) {
	criteria := []Criteria{
		{},
		{Operation: model.OperationJT},
		{Query: "carlos"},
		{Start: ptr(day(2025, 5, 11))},
	}
	claims := fixture()

	for _, c := range criteria {
		res := Aggregate(claims, c)

		var want model.Money
		for _, claim := range claims {
			if c.Matches(claim) {
				want += claim.AmountOrZero()
			}
		}
		if res.Total != want {
			t.Errorf("Aggregate(%+v).Total = %d, ожидается %d", c, res.Total, want)
		}
		if res.Count != len(res.Claims) {
			t.Errorf("Count = %d, len(Claims) = %d", res.Count, len(res.Claims))
		}
	}

	if got := Aggregate(claims, Criteria{}).Total; got != 1250+890+2035 {
		t.Errorf("Total = %d, ожидается %d", got, 1250+890+2035)
	}
}

func TestTotal_OrderIndependent(t *testing.T) {
	claims := fixture()
	reversed := make([]*model.Claim, len(claims))
	for i, c := range claims {
		reversed[len(claims)-1-i] = c
	}
	if Total(claims) != Total(reversed) {
		t.Error("сумма зависит от порядка")
	}
}
