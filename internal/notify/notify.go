// Пакет notify — подтверждение приёма заявки по e-mail.
//
// Отправка выполняется асинхронно через Dispatcher после того, как
// заявка уже сохранена. Результат отправки только логируется и
// никогда не влияет на ход фиксации заявки.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNotification — базовая ошибка отправки уведомления.
var ErrNotification = errors.New("ошибка отправки уведомления")

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rv_notifications_total",
	Help: "Количество уведомлений о приёме заявки по результату",
}, []string{"result"})

// Notification — данные письма-подтверждения.
type Notification struct {
	To         string
	Protocol   string
	Plate      string
	DriverName string
}

// Sender отправляет уведомление.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender только пишет уведомление в лог. Используется без API-ключа.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender создаёт отправитель-заглушку.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("component", "notify"))}
}

// Send логирует уведомление.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("Уведомление не отправлено: провайдер не настроен",
		slog.String("to", n.To),
		slog.String("protocol", n.Protocol),
	)
	return nil
}

// Dispatcher запускает отправку в отдельной горутине.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. timeout ограничивает одну отправку.
func NewDispatcher(sender Sender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "notify_dispatcher")),
	}
}

// Dispatch ставит уведомление в отправку и сразу возвращает управление.
// Контекст отправки не связан с HTTP-запросом. После Close уведомления
// отбрасываются с предупреждением в логе.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		notificationsTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("Диспетчер остановлен, уведомление отброшено",
			slog.String("protocol", n.Protocol),
		)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.send(n)
	}()
}

func (d *Dispatcher) send(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("Не удалось отправить подтверждение",
			slog.String("protocol", n.Protocol),
			slog.String("to", n.To),
			slog.String("error", fmt.Errorf("%w: %w", ErrNotification, err).Error()),
		)
		return
	}

	notificationsTotal.WithLabelValues("sent").Inc()
	d.logger.Info("Подтверждение отправлено",
		slog.String("protocol", n.Protocol),
		slog.String("to", n.To),
	)
}

// Close запрещает новые отправки и ждёт завершения начатых.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
