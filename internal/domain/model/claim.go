// Пакет model — доменные модели сервиса Rivilog.
package model

import (
	"fmt"
	"time"
)

// Operation — транспортная операция (перевозчик), к которой относится поездка.
type Operation string

const (
	// OperationJT — J&T Express.
	OperationJT Operation = "J&T EXPRESS"
	// OperationImile — iMile, вторичная доставка.
	OperationImile Operation = "IMILE SEGUNDARIA"
	// OperationAll — значение фильтра «все операции», не сохраняется в заявках.
	OperationAll Operation = "TODAS"
)

// Operations — закрытый список операций, доступных водителю.
var Operations = []Operation{OperationJT, OperationImile}

// Valid возвращает true для операций из закрытого списка.
// OperationAll операцией заявки не является.
func (o Operation) Valid() bool {
	for _, op := range Operations {
		if op == o {
			return true
		}
	}
	return false
}

// Money — денежная сумма в сентаво (1/100 реала).
type Money int64

// Reais возвращает сумму в реалах для табличного экспорта и JSON.
func (m Money) Reais() float64 {
	return float64(m) / 100
}

// String возвращает сумму с точкой и двумя знаками после неё ("1234.56").
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Claim — заявка водителя на возмещение оплаты платной дороги.
type Claim struct {
	ID string
	// Protocol — уникальный идентификатор вида RIV-2026-AB12C.
	// У записей, созданных до появления протокола, может быть пустым.
	Protocol   string
	DriverName string
	// TripDate — дата поездки без времени; нулевое значение — не указана.
	TripDate  time.Time
	Plate     string
	Operation Operation
	// Amount — nil у записей без суммы.
	Amount    *Money
	Phone     string
	Email     string
	Evidence  EvidenceSet
	CreatedAt time.Time
}

// AmountOrZero возвращает сумму заявки, отсутствующая сумма считается нулём.
func (c *Claim) AmountOrZero() Money {
	if c.Amount == nil {
		return 0
	}
	return *c.Amount
}

// Files возвращает вложения заявки в каноническом виде.
func (c *Claim) Files() Evidence {
	return ResolveEvidence(c.Evidence)
}
