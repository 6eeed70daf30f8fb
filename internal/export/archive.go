package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

// Prometheus метрики сборки архива
var (
	archiveFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_archive_fetches_total",
		Help: "Количество скачиваний файлов при сборке архива по результату",
	}, []string{"result"})

	archiveDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rv_archive_duration_seconds",
		Help:    "Длительность сборки архива в секундах",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})
)

// Подписи для отсутствующих значений в именах каталогов.
const (
	noDateFolder  = "SEM-DATA"
	noNameLabel   = "SEM-NOME"
	noProtocolTag = "SEM-PROTOCOLO"
)

// FetchError — файл не удалось скачать. В архив вместо него пишется заглушка.
type FetchError struct {
	Entry string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("скачивание %s (%s): %v", e.Entry, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ArchiveReport — итог сборки архива.
type ArchiveReport struct {
	Claims       int
	Files        int
	Placeholders int
	Failures     []*FetchError
}

// ArchiveFileName возвращает имя архива на дату now.
func ArchiveFileName(now time.Time) string {
	return fmt.Sprintf("RIVILOG_COMPROVANTES_%s.zip", now.In(Location).Format(time.DateOnly))
}

// ArchiveExporter собирает ZIP-архив файлов-подтверждений:
//
//	DD-MM-YYYY/<МОТОРИСТ> - <ПРОТОКОЛ>/comprovante_<n>.<ext>
//	DD-MM-YYYY/<МОТОРИСТ> - <ПРОТОКОЛ>/extrato_tag.pdf
//
// Файлы скачиваются окнами по parallelism штук, в архив пишутся строго
// в порядке заявок. Ошибка скачивания одного файла заменяется текстовой
// заглушкой <имя>_ERRO.txt и не прерывает сборку.
type ArchiveExporter struct {
	fetcher      Fetcher
	parallelism  int
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewArchiveExporter создаёт сборщик архива.
func NewArchiveExporter(fetcher Fetcher, parallelism int, fetchTimeout time.Duration, logger *slog.Logger) *ArchiveExporter {
	if parallelism < 1 {
		parallelism = 1
	}
	return &ArchiveExporter{
		fetcher:      fetcher,
		parallelism:  parallelism,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "archive_export")),
	}
}

// entry — файл архива и ссылка, откуда его скачать.
type entry struct {
	path string
	url  string
}

// fetched — результат скачивания одного entry.
type fetched struct {
	data []byte
	err  error
}

// Write пишет архив в w. Ошибка возвращается только если отбор пуст,
// запрос отменён или не удалось записать сам архив.
func (a *ArchiveExporter) Write(ctx context.Context, w io.Writer, claims []*model.Claim) (*ArchiveReport, error) {
	if len(claims) == 0 {
		return nil, ErrEmptySelection
	}
	start := time.Now()
	defer func() { archiveDurationSeconds.Observe(time.Since(start).Seconds()) }()

	entries := planEntries(claims)
	report := &ArchiveReport{Claims: len(claims)}
	modified := a.now()

	zw := zip.NewWriter(w)
	for offset := 0; offset < len(entries); offset += a.parallelism {
		window := entries[offset:min(offset+a.parallelism, len(entries))]

		results, err := a.fetchWindow(ctx, window)
		if err != nil {
			return report, err
		}

		for i, e := range window {
			if err := a.writeEntry(zw, e, results[i], modified, report); err != nil {
				return report, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("ошибка завершения архива: %w", err)
	}

	a.logger.Info("Архив собран",
		slog.Int("claims", report.Claims),
		slog.Int("files", report.Files),
		slog.Int("placeholders", report.Placeholders),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// fetchWindow скачивает окно файлов параллельно. Ошибки отдельных файлов
// сохраняются в результатах; ошибкой окна считается только отмена ctx.
func (a *ArchiveExporter) fetchWindow(ctx context.Context, window []entry) ([]fetched, error) {
	results := make([]fetched, len(window))

	var g errgroup.Group
	g.SetLimit(a.parallelism)
	for i, e := range window {
		g.Go(func() error {
			results[i] = a.fetch(ctx, e.url)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("сборка архива прервана: %w", err)
	}
	return results, nil
}

func (a *ArchiveExporter) fetch(ctx context.Context, url string) fetched {
	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	body, err := a.fetcher.Fetch(fctx, url)
	if err != nil {
		return fetched{err: err}
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fetched{err: fmt.Errorf("чтение тела ответа: %w", err)}
	}
	return fetched{data: data}
}

func (a *ArchiveExporter) writeEntry(zw *zip.Writer, e entry, res fetched, modified time.Time, report *ArchiveReport) error {
	name, data := e.path, res.data
	if res.err != nil {
		fetchErr := &FetchError{Entry: e.path, URL: e.url, Err: res.err}
		report.Failures = append(report.Failures, fetchErr)
		report.Placeholders++
		archiveFetchesTotal.WithLabelValues("failed").Inc()
		a.logger.Warn("Файл не скачан, записана заглушка",
			slog.String("entry", e.path),
			slog.String("url", e.url),
			slog.String("error", res.err.Error()),
		)
		name = placeholderName(e.path)
		data = []byte(placeholderText(e.url, res.err))
	} else {
		report.Files++
		archiveFetchesTotal.WithLabelValues("ok").Inc()
	}

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("ошибка создания записи %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", name, err)
	}
	return nil
}

// planEntries раскладывает файлы заявок по каталогам архива.
func planEntries(claims []*model.Claim) []entry {
	var entries []entry
	used := make(map[string]int)

	for _, c := range claims {
		folder := DateFolder(c.TripDate) + "/" + ClaimFolder(c.DriverName, c.Protocol)
		// Одинаковые каталоги у разных заявок (например, без протокола) различаются номером
		used[folder]++
		if n := used[folder]; n > 1 {
			folder = fmt.Sprintf("%s (%d)", folder, n)
		}

		files := c.Files()
		for i, u := range files.Receipts {
			entries = append(entries, entry{
				path: fmt.Sprintf("%s/comprovante_%d.%s", folder, i+1, ExtFromURL(u)),
				url:  u,
			})
		}
		if files.Statement != "" {
			entries = append(entries, entry{path: folder + "/extrato_tag.pdf", url: files.Statement})
		}
	}
	return entries
}

// DateFolder — каталог даты поездки вида DD-MM-YYYY.
func DateFolder(tripDate time.Time) string {
	if tripDate.IsZero() {
		return noDateFolder
	}
	return tripDate.Format("02-01-2006")
}

// ClaimFolder — каталог заявки "<ИМЯ> - <ПРОТОКОЛ>". Из имени остаются
// только латинские буквы и цифры в верхнем регистре, диакритика снимается
// ("João" → "JOAO").
func ClaimFolder(driverName, protocol string) string {
	name := alnumUpper(driverName, false)
	if name == "" {
		name = noNameLabel
	}
	proto := alnumUpper(protocol, true)
	if proto == "" {
		proto = noProtocolTag
	}
	return name + " - " + proto
}

// ExtFromURL: pdf, если ссылка содержит ".pdf", иначе jpg.
func ExtFromURL(u string) string {
	if strings.Contains(strings.ToLower(u), ".pdf") {
		return "pdf"
	}
	return "jpg"
}

func alnumUpper(s string, keepDash bool) string {
	// Transformer из transform.Chain хранит состояние, поэтому свой на каждый вызов
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if plain, _, err := transform.String(t, s); err == nil {
		s = plain
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || (keepDash && r == '-') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func placeholderName(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		path = path[:i]
	}
	return path + "_ERRO.txt"
}

func placeholderText(url string, err error) string {
	return fmt.Sprintf("Não foi possível baixar este arquivo.\nURL: %s\nErro: %v\n", url, err)
}
