package wizard

import (
	"errors"
	"strings"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/mask"
)

// ErrValidation — базовая ошибка валидации шага. Все *GuardError
// сопоставляются с ней через errors.Is.
var ErrValidation = errors.New("ошибка валидации")

// GuardError — guard отклонил переход. Message предназначено водителю.
type GuardError struct {
	Field   string
	Message string
}

func (e *GuardError) Error() string {
	return e.Field + ": " + e.Message
}

// Is позволяет проверять errors.Is(err, ErrValidation).
func (e *GuardError) Is(target error) bool {
	return target == ErrValidation
}

// Guard — чистая проверка данных формы перед переходом вперёд.
type Guard func(f Form) error

// GuardTripDate: дата поездки указана.
func GuardTripDate(f Form) error {
	if f.TripDate.IsZero() {
		return &GuardError{Field: FieldTripDate, Message: "Informe a data da viagem."}
	}
	return nil
}

// GuardPlate: госномер из 7 символов.
func GuardPlate(f Form) error {
	if !mask.PlateComplete(f.Plate) {
		return &GuardError{Field: FieldPlate, Message: "Placa inválida. Digite os 7 caracteres."}
	}
	return nil
}

// GuardOperation: операция из закрытого списка.
func GuardOperation(f Form) error {
	if !f.Operation.Valid() {
		return &GuardError{Field: "operation", Message: "Selecione uma operação válida."}
	}
	return nil
}

// GuardAmount: сумма указана и не оканчивается на ",00".
func GuardAmount(f Form) error {
	if f.Amount == "" {
		return &GuardError{Field: FieldAmount, Message: "Informe o valor do pedágio."}
	}
	if !mask.AmountHasCents(f.Amount) {
		return &GuardError{Field: FieldAmount, Message: "Valor inválido. Digite o valor exato com os centavos."}
	}
	if _, err := mask.ParseAmount(f.Amount); err != nil {
		return &GuardError{Field: FieldAmount, Message: "Valor inválido."}
	}
	return nil
}

// GuardContact: телефон полной длины и корректный e-mail.
func GuardContact(f Form) error {
	if !mask.PhoneComplete(f.Phone) {
		return &GuardError{Field: FieldPhone, Message: "Telefone incompleto."}
	}
	if !mask.ValidEmail(f.Email) {
		return &GuardError{Field: FieldEmail, Message: "E-mail inválido."}
	}
	return nil
}

// GuardDriverName: имя водителя не пустое.
func GuardDriverName(f Form) error {
	if strings.TrimSpace(f.DriverName) == "" {
		return &GuardError{Field: FieldDriverName, Message: "Informe seu nome completo."}
	}
	return nil
}

// GuardComplete: все проверки шагов вперёд, в порядке шагов.
// Выполняется при отправке, чтобы в заявку не попала форма,
// изменённая после прохождения шага.
func GuardComplete(f Form) error {
	for _, g := range []Guard{GuardTripDate, GuardPlate, GuardOperation, GuardAmount, GuardContact, GuardDriverName} {
		if err := g(f); err != nil {
			return err
		}
	}
	return nil
}
