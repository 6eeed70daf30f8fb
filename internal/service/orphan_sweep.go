// orphan_sweep.go — очистка осиротевших файлов хранилища.
//
// Файл считается осиротевшим, если ни одна заявка на него не ссылается.
// Такие файлы остаются после частично неудачного удаления заявки или
// после сбоя между загрузкой файлов и записью заявки.
//
// Файлы моложе grace-периода не трогаются: они могут принадлежать
// фиксации, которая ещё выполняется.
//
// Запуск — по запросу администратора; при ненулевом интервале также
// фоновой горутиной с периодическим тикером.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/repository"
)

// Prometheus метрики очистки
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_orphan_sweep_runs_total",
		Help: "Общее количество запусков очистки осиротевших файлов",
	})

	sweepFilesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_orphan_files_removed_total",
		Help: "Общее количество удалённых осиротевших файлов",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rv_orphan_sweep_duration_seconds",
		Help:    "Длительность очистки осиротевших файлов в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	StartedAt   time.Time
	CompletedAt time.Time
	// Scanned — файлов в хранилище
	Scanned int
	// Referenced — файлов, на которые ссылаются заявки
	Referenced int
	// Young — осиротевших файлов моложе grace-периода
	Young int
	// Removed — пути удалённых файлов
	Removed []string
	// Failed — ошибка удаления (пусто при успехе)
	Failed string
}

// OrphanSweeper — сервис очистки осиротевших файлов.
type OrphanSweeper struct {
	repo     repository.ClaimRepository
	blobs    blobstore.Store
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewOrphanSweeper создаёт сервис очистки. interval = 0 — без фонового запуска.
func NewOrphanSweeper(
	repo repository.ClaimRepository,
	blobs blobstore.Store,
	grace time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *OrphanSweeper {
	return &OrphanSweeper{
		repo:     repo,
		blobs:    blobs,
		grace:    grace,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "orphan_sweep")),
	}
}

// Start запускает фоновую очистку, если задан интервал.
func (o *OrphanSweeper) Start(ctx context.Context) {
	if o.interval <= 0 {
		o.logger.Info("Фоновая очистка отключена, только по запросу")
		return
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	go o.run(sweepCtx)

	o.logger.Info("Фоновая очистка запущена",
		slog.String("interval", o.interval.String()),
		slog.String("grace", o.grace.String()),
	)
}

// Stop останавливает фоновую очистку.
func (o *OrphanSweeper) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.logger.Info("Фоновая очистка остановлена")
	}
}

func (o *OrphanSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.RunOnce(ctx); err != nil {
				o.logger.Error("Очистка не выполнена", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Если очистка уже выполняется, возвращает ErrBusy.
// Если список заявок получить не удалось, ничего не удаляется.
func (o *OrphanSweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	o.mu.Lock()
	if o.inProcess {
		o.mu.Unlock()
		o.logger.Warn("Очистка уже выполняется, пропуск")
		return nil, ErrBusy
	}
	o.inProcess = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inProcess = false
		o.mu.Unlock()
	}()

	result := &SweepResult{StartedAt: o.now().UTC()}

	claims, err := o.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	referenced := make(map[string]struct{})
	for _, c := range claims {
		for _, u := range c.Files().URLs() {
			if p, ok := o.blobs.PathFromURL(u); ok {
				referenced[p] = struct{}{}
			}
		}
	}

	objects, err := o.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	result.Scanned = len(objects)

	cutoff := o.now().Add(-o.grace)
	var orphans []string
	for _, obj := range objects {
		if _, ok := referenced[obj.Path]; ok {
			result.Referenced++
			continue
		}
		if obj.ModTime.After(cutoff) {
			result.Young++
			continue
		}
		orphans = append(orphans, obj.Path)
	}

	if len(orphans) > 0 {
		if err := o.blobs.Remove(ctx, orphans); err != nil {
			result.Failed = err.Error()
			o.logger.Error("Ошибка удаления осиротевших файлов",
				slog.Int("count", len(orphans)),
				slog.String("error", err.Error()),
			)
		} else {
			result.Removed = orphans
		}
	}

	result.CompletedAt = o.now().UTC()
	duration := result.CompletedAt.Sub(result.StartedAt)

	sweepRunsTotal.Inc()
	sweepFilesRemovedTotal.Add(float64(len(result.Removed)))
	sweepDurationSeconds.Observe(duration.Seconds())

	o.logger.Info("Очистка завершена",
		slog.Int("scanned", result.Scanned),
		slog.Int("referenced", result.Referenced),
		slog.Int("young", result.Young),
		slog.Int("removed", len(result.Removed)),
		slog.Duration("duration", duration),
	)
	return result, nil
}
