// Пакет wizard — конечный автомат пошагового мастера подачи заявки.
//
// Шаги идут строго по порядку:
//
//	intro → trip_date → plate → operation → amount → receipt_photo →
//	statement_pdf → contact → driver_name → summary → submitting → success
//
// Переходы заданы таблицей (шаг, событие) → (следующий шаг, guard).
// Guard — чистый предикат над данными формы; переход назад guard'ов не имеет.
// Выбор операции на шаге operation сразу переводит мастер на amount.
//
// Потокобезопасен через sync.RWMutex.
package wizard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

// Step — шаг мастера.
type Step string

const (
	StepIntro        Step = "intro"
	StepTripDate     Step = "trip_date"
	StepPlate        Step = "plate"
	StepOperation    Step = "operation"
	StepAmount       Step = "amount"
	StepReceiptPhoto Step = "receipt_photo"
	StepStatementPdf Step = "statement_pdf"
	StepContact      Step = "contact"
	StepDriverName   Step = "driver_name"
	StepSummary      Step = "summary"
	StepSubmitting   Step = "submitting"
	StepSuccess      Step = "success"
)

// Event — событие, инициирующее переход.
type Event string

const (
	EventNext            Event = "next"
	EventBack            Event = "back"
	EventSelectOperation Event = "select_operation"
	EventSubmit          Event = "submit"
	EventCommitSucceeded Event = "commit_succeeded"
	EventCommitFailed    Event = "commit_failed"
)

// Attachment — файл, приложенный к форме до фиксации заявки.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Form — накопленные данные мастера. Значения уже нормализованы масками.
type Form struct {
	TripDate   time.Time
	Plate      string
	Operation  model.Operation
	Amount     string
	Phone      string
	Email      string
	DriverName string
	Receipt    *Attachment
	Statement  *Attachment
	// Protocol заполняется после успешной фиксации.
	Protocol string
}

// TransitionRecord — запись о выполненном переходе.
type TransitionRecord struct {
	From      Step      `json:"from"`
	To        Step      `json:"to"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionError — событие недопустимо в текущем шаге.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// transition — строка таблицы переходов.
type transition struct {
	to    Step
	guard Guard
}

// transitions — таблица переходов мастера.
var transitions = map[Step]map[Event]transition{
	StepIntro: {
		EventNext: {to: StepTripDate},
	},
	StepTripDate: {
		EventNext: {to: StepPlate, guard: GuardTripDate},
		EventBack: {to: StepIntro},
	},
	StepPlate: {
		EventNext: {to: StepOperation, guard: GuardPlate},
		EventBack: {to: StepTripDate},
	},
	StepOperation: {
		EventSelectOperation: {to: StepAmount, guard: GuardOperation},
		EventBack:            {to: StepPlate},
	},
	StepAmount: {
		EventNext: {to: StepReceiptPhoto, guard: GuardAmount},
		EventBack: {to: StepOperation},
	},
	StepReceiptPhoto: {
		EventNext: {to: StepStatementPdf},
		EventBack: {to: StepAmount},
	},
	StepStatementPdf: {
		EventNext: {to: StepContact},
		EventBack: {to: StepReceiptPhoto},
	},
	StepContact: {
		EventNext: {to: StepDriverName, guard: GuardContact},
		EventBack: {to: StepStatementPdf},
	},
	StepDriverName: {
		EventNext: {to: StepSummary},
		EventBack: {to: StepContact},
	},
	StepSummary: {
		EventSubmit: {to: StepSubmitting, guard: GuardComplete},
		EventBack:   {to: StepDriverName},
	},
	StepSubmitting: {
		EventCommitSucceeded: {to: StepSuccess},
		EventCommitFailed:    {to: StepSummary},
	},
	StepSuccess: {},
}

// ErrFormLocked — форму нельзя менять во время фиксации и после неё.
var ErrFormLocked = errors.New("форма заблокирована")

// Machine — автомат одной сессии мастера.
type Machine struct {
	mu      sync.RWMutex
	current Step
	form    Form
	history []TransitionRecord
	now     func() time.Time
}

// New создаёт автомат на шаге intro.
func New() *Machine {
	return &Machine{
		current: StepIntro,
		history: make([]TransitionRecord, 0),
		now:     time.Now,
	}
}

// Current возвращает текущий шаг.
func (m *Machine) Current() Step {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Form возвращает копию данных формы.
func (m *Machine) Form() Form {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.form
}

// History возвращает копию истории переходов.
func (m *Machine) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]TransitionRecord, len(m.history))
	copy(result, m.history)
	return result
}

// Update изменяет данные формы. Во время фиксации и после неё
// возвращает ErrFormLocked.
func (m *Machine) Update(fn func(f *Form)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == StepSubmitting || m.current == StepSuccess {
		return ErrFormLocked
	}
	fn(&m.form)
	return nil
}

// fieldSteps — шаг, на котором вводится поле формы.
var fieldSteps = map[string]Step{
	FieldTripDate:   StepTripDate,
	FieldPlate:      StepPlate,
	FieldAmount:     StepAmount,
	FieldPhone:      StepContact,
	FieldEmail:      StepContact,
	FieldDriverName: StepDriverName,
}

// Имена полей формы, как их видит клиент.
const (
	FieldTripDate   = "trip_date"
	FieldPlate      = "plate"
	FieldAmount     = "amount"
	FieldPhone      = "phone"
	FieldEmail      = "email"
	FieldDriverName = "driver_name"
)

// Edit изменяет поля формы, вводимые на текущем шаге. Поле чужого шага
// отклоняется *GuardError, форма при этом не меняется.
func (m *Machine) Edit(fields []string, fn func(f *Form)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == StepSubmitting || m.current == StepSuccess {
		return ErrFormLocked
	}
	for _, name := range fields {
		if step, ok := fieldSteps[name]; !ok || step != m.current {
			return &GuardError{Field: name, Message: "Este campo não pode ser alterado nesta etapa."}
		}
	}
	fn(&m.form)
	return nil
}

// Fire выполняет переход по событию и возвращает новый шаг.
//
// Ошибки:
//   - *TransitionError (INVALID_TRANSITION) — событие недопустимо в текущем шаге
//   - *GuardError — guard отклонил переход, шаг не меняется
func (m *Machine) Fire(ev Event) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fire(ev)
}

// SelectOperation записывает операцию и переводит мастер на шаг amount.
// Если операция не принята, форма не меняется.
func (m *Machine) SelectOperation(op model.Operation) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != StepOperation {
		return m.current, invalidTransition(m.current, EventSelectOperation)
	}

	prev := m.form.Operation
	m.form.Operation = op
	step, err := m.fire(EventSelectOperation)
	if err != nil {
		m.form.Operation = prev
	}
	return step, err
}

// Succeed завершает фиксацию: запоминает протокол и переходит в success.
func (m *Machine) Succeed(protocol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.fire(EventCommitSucceeded); err != nil {
		return err
	}
	m.form.Protocol = protocol
	return nil
}

// Fail возвращает мастер на шаг summary после неудачной фиксации.
// Данные формы сохраняются для повторной попытки.
func (m *Machine) Fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.fire(EventCommitFailed)
	return err
}

// fire выполняет переход. Вызывается под m.mu.
func (m *Machine) fire(ev Event) (Step, error) {
	row, ok := transitions[m.current]
	if !ok {
		return m.current, invalidTransition(m.current, ev)
	}
	tr, ok := row[ev]
	if !ok {
		return m.current, invalidTransition(m.current, ev)
	}

	if tr.guard != nil {
		if err := tr.guard(m.form); err != nil {
			return m.current, err
		}
	}

	m.history = append(m.history, TransitionRecord{
		From:      m.current,
		To:        tr.to,
		Event:     ev,
		Timestamp: m.now().UTC(),
	})
	m.current = tr.to
	return m.current, nil
}

func invalidTransition(from Step, ev Event) *TransitionError {
	return &TransitionError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("событие %q недопустимо на шаге %q", ev, from),
	}
}
