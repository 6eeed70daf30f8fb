// submission.go — сервис мастера подачи заявки и фиксации заявки.
//
// Фиксация (Commit) выполняется строго по порядку:
//  1. guard имени водителя (переход summary → submitting)
//  2. генерация протокола
//  3. загрузка квитанции и выписки в хранилище (ограничено UploadTimeout)
//  4. запись заявки в БД
//  5. асинхронное уведомление водителя (результат только логируется)
//  6. переход в success с протоколом
//
// Ошибка на шагах 2–4 возвращает мастер на summary с сохранёнными данными.
// Загруженные файлы при ошибке записи удаляются.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/mask"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/notify"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/repository"
)

// Prometheus метрики фиксации заявок
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_submissions_total",
		Help: "Количество попыток фиксации заявки по результату",
	}, []string{"result"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rv_uploads_total",
		Help: "Количество загрузок файлов в хранилище по результату",
	}, []string{"kind", "result"})

	commitDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rv_commit_duration_seconds",
		Help:    "Длительность фиксации заявки в секундах",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// Виды вложений мастера.
const (
	EvidenceReceipt   = "receipt"
	EvidenceStatement = "statement"
)

// compensateTimeout — таймаут удаления загруженных файлов после ошибки.
const compensateTimeout = 30 * time.Second

// ProtocolGenerator выдаёт протокол новой заявки.
type ProtocolGenerator interface {
	Next() (string, error)
}

// Notifier ставит уведомление в асинхронную отправку.
type Notifier interface {
	Dispatch(n notify.Notification)
}

// SubmissionConfig — параметры приёма заявок.
type SubmissionConfig struct {
	UploadTimeout time.Duration
	MaxUploadSize int64
}

// SessionView — снимок сессии для ответа клиенту.
type SessionView struct {
	ID      string
	Step    wizard.Step
	Form    wizard.Form
	History []wizard.TransitionRecord
	Busy    bool
}

// FieldsInput — сырые значения полей формы. nil — поле не меняется.
type FieldsInput struct {
	TripDate   *time.Time
	Plate      *string
	Amount     *string
	Phone      *string
	Email      *string
	DriverName *string
}

// SubmissionService — мастер подачи заявки.
type SubmissionService struct {
	sessions  *SessionStore
	repo      repository.ClaimRepository
	blobs     blobstore.Store
	protocols ProtocolGenerator
	notifier  Notifier
	cfg       SubmissionConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewSubmissionService создаёт сервис приёма заявок.
func NewSubmissionService(
	sessions *SessionStore,
	repo repository.ClaimRepository,
	blobs blobstore.Store,
	protocols ProtocolGenerator,
	notifier Notifier,
	cfg SubmissionConfig,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		sessions:  sessions,
		repo:      repo,
		blobs:     blobs,
		protocols: protocols,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "submission")),
	}
}

// Create открывает новую сессию мастера.
func (s *SubmissionService) Create() SessionView {
	return view(s.sessions.Create())
}

// Get возвращает текущее состояние сессии.
func (s *SubmissionService) Get(id string) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	return view(sess), nil
}

// UpdateFields применяет маски к сырым значениям и записывает их в форму.
// Шаг мастера не меняется. Принимаются только поля текущего шага:
// значение, уже проверенное при переходе вперёд, можно изменить,
// лишь вернувшись на его шаг.
func (s *SubmissionService) UpdateFields(id string, in FieldsInput) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}

	err = sess.Machine.Edit(in.names(), func(f *wizard.Form) {
		if in.TripDate != nil {
			y, m, d := in.TripDate.Date()
			f.TripDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
		if in.Plate != nil {
			f.Plate = mask.MaskPlate(*in.Plate)
		}
		if in.Amount != nil {
			f.Amount = mask.MaskCurrency(*in.Amount)
		}
		if in.Phone != nil {
			f.Phone = mask.MaskPhone(*in.Phone)
		}
		if in.Email != nil {
			f.Email = mask.NormalizeEmail(*in.Email)
		}
		if in.DriverName != nil {
			f.DriverName = strings.TrimSpace(*in.DriverName)
		}
	})
	if err != nil {
		return SessionView{}, lockedErr(err)
	}
	return view(sess), nil
}

// names — имена переданных полей.
func (in FieldsInput) names() []string {
	var names []string
	if in.TripDate != nil {
		names = append(names, wizard.FieldTripDate)
	}
	if in.Plate != nil {
		names = append(names, wizard.FieldPlate)
	}
	if in.Amount != nil {
		names = append(names, wizard.FieldAmount)
	}
	if in.Phone != nil {
		names = append(names, wizard.FieldPhone)
	}
	if in.Email != nil {
		names = append(names, wizard.FieldEmail)
	}
	if in.DriverName != nil {
		names = append(names, wizard.FieldDriverName)
	}
	return names
}

// Fire выполняет навигационное событие (next, back).
// Событие select_operation требует операцию и выполняется через SelectOperation;
// submit — только через Commit.
func (s *SubmissionService) Fire(id string, ev wizard.Event) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	if ev != wizard.EventNext && ev != wizard.EventBack {
		return SessionView{}, &wizard.TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("событие %q недоступно клиенту", ev),
		}
	}
	if sess.Busy() {
		return SessionView{}, ErrBusy
	}
	if _, err := sess.Machine.Fire(ev); err != nil {
		return SessionView{}, err
	}
	return view(sess), nil
}

// SelectOperation записывает операцию и переводит мастер на шаг amount.
func (s *SubmissionService) SelectOperation(id string, op model.Operation) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	if _, err := sess.Machine.SelectOperation(op); err != nil {
		return SessionView{}, err
	}
	return view(sess), nil
}

// AttachEvidence прикладывает файл к форме. Квитанция — изображение или PDF,
// выписка — только PDF. Файл хранится в памяти до фиксации заявки.
func (s *SubmissionService) AttachEvidence(id, kind, fileName, contentType string, r io.Reader) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}

	if err := checkEvidenceType(kind, contentType); err != nil {
		return SessionView{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadSize+1))
	if err != nil {
		return SessionView{}, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		return SessionView{}, &wizard.GuardError{
			Field:   kind,
			Message: fmt.Sprintf("Arquivo muito grande. Limite: %d MB.", s.cfg.MaxUploadSize>>20),
		}
	}
	if len(data) == 0 {
		return SessionView{}, &wizard.GuardError{Field: kind, Message: "Arquivo vazio."}
	}

	att := &wizard.Attachment{FileName: filepath.Base(fileName), ContentType: contentType, Data: data}
	err = sess.Machine.Update(func(f *wizard.Form) {
		if kind == EvidenceReceipt {
			f.Receipt = att
		} else {
			f.Statement = att
		}
	})
	if err != nil {
		return SessionView{}, lockedErr(err)
	}
	return view(sess), nil
}

// DetachEvidence убирает вложение из формы.
func (s *SubmissionService) DetachEvidence(id, kind string) (SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return SessionView{}, err
	}
	if kind != EvidenceReceipt && kind != EvidenceStatement {
		return SessionView{}, fmt.Errorf("%w: неизвестный вид вложения %q", ErrValidation, kind)
	}
	err = sess.Machine.Update(func(f *wizard.Form) {
		if kind == EvidenceReceipt {
			f.Receipt = nil
		} else {
			f.Statement = nil
		}
	})
	if err != nil {
		return SessionView{}, lockedErr(err)
	}
	return view(sess), nil
}

// Commit фиксирует заявку и возвращает её протокол.
//
// Ошибки:
//   - ErrBusy — фиксация этой сессии уже выполняется
//   - *wizard.GuardError, *wizard.TransitionError — шаг не summary или нет имени
//   - ErrUpload, ErrPersistence — мастер возвращён на summary, данные сохранены
func (s *SubmissionService) Commit(ctx context.Context, id string) (string, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return "", err
	}
	if !sess.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	s.sessions.Pin(sess)
	defer func() {
		s.sessions.Unpin(sess)
		sess.busy.Store(false)
	}()

	if _, err := sess.Machine.Fire(wizard.EventSubmit); err != nil {
		return "", err
	}

	start := time.Now()
	protocol, err := s.commit(ctx, sess.Machine.Form())
	commitDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		if failErr := sess.Machine.Fail(); failErr != nil {
			s.logger.Error("Не удалось вернуть мастер на summary",
				slog.String("session_id", sess.ID),
				slog.String("error", failErr.Error()),
			)
		}
		s.logger.Warn("Фиксация заявки не удалась",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	if err := sess.Machine.Succeed(protocol); err != nil {
		return "", err
	}
	submissionsTotal.WithLabelValues("committed").Inc()
	return protocol, nil
}

// commit выполняет шаги 2–5.
func (s *SubmissionService) commit(ctx context.Context, form wizard.Form) (string, error) {
	protocol, err := s.protocols.Next()
	if err != nil {
		return "", fmt.Errorf("%w: генерация протокола: %w", ErrPersistence, err)
	}

	amount, err := mask.ParseAmount(form.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	receiptURL, statementURL, uploaded, err := s.uploadEvidence(ctx, form)
	if err != nil {
		return "", err
	}

	claim := &model.Claim{
		ID:         uuid.NewString(),
		Protocol:   protocol,
		DriverName: form.DriverName,
		TripDate:   form.TripDate,
		Plate:      form.Plate,
		Operation:  form.Operation,
		Amount:     &amount,
		Phone:      form.Phone,
		Email:      mask.NormalizeEmail(form.Email),
		Evidence:   model.SingleEvidence{Receipt: receiptURL, Statement: statementURL},
	}

	if err := s.repo.Insert(ctx, claim); err != nil {
		s.compensate(ctx, uploaded)
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info("Заявка зарегистрирована",
		slog.String("protocol", protocol),
		slog.String("claim_id", claim.ID),
		slog.String("plate", claim.Plate),
		slog.Int("files", len(uploaded)),
	)

	if claim.Email != "" {
		s.notifier.Dispatch(notify.Notification{
			To:         claim.Email,
			Protocol:   protocol,
			Plate:      claim.Plate,
			DriverName: claim.DriverName,
		})
	}
	return protocol, nil
}

// uploadEvidence загружает вложения параллельно. Обе загрузки должны
// завершиться успешно; при ошибке уже загруженные файлы удаляются.
func (s *SubmissionService) uploadEvidence(
	ctx context.Context,
	form wizard.Form,
) (receiptURL, statementURL string, uploaded []string, err error) {
	now := s.now()
	var receiptPath, statementPath string
	if form.Receipt != nil {
		receiptPath = blobstore.ObjectName(blobstore.KindReceipt, form.Plate, attachmentExt(form.Receipt), now)
	}
	if form.Statement != nil {
		statementPath = blobstore.ObjectName(blobstore.KindStatement, form.Plate, "pdf", now)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	var receiptDone, statementDone bool
	g, gctx := errgroup.WithContext(uploadCtx)
	if form.Receipt != nil {
		g.Go(func() error {
			if err := s.upload(gctx, EvidenceReceipt, receiptPath, form.Receipt); err != nil {
				return err
			}
			receiptDone = true
			return nil
		})
	}
	if form.Statement != nil {
		g.Go(func() error {
			if err := s.upload(gctx, EvidenceStatement, statementPath, form.Statement); err != nil {
				return err
			}
			statementDone = true
			return nil
		})
	}
	waitErr := g.Wait()

	if receiptDone {
		uploaded = append(uploaded, receiptPath)
	}
	if statementDone {
		uploaded = append(uploaded, statementPath)
	}
	if waitErr != nil {
		s.compensate(ctx, uploaded)
		return "", "", nil, fmt.Errorf("%w: %w", ErrUpload, waitErr)
	}

	if receiptDone {
		receiptURL = s.blobs.PublicURL(receiptPath)
	}
	if statementDone {
		statementURL = s.blobs.PublicURL(statementPath)
	}
	return receiptURL, statementURL, uploaded, nil
}

func (s *SubmissionService) upload(ctx context.Context, kind, path string, att *wizard.Attachment) error {
	contentType := att.ContentType
	if contentType == "" && kind == EvidenceStatement {
		contentType = "application/pdf"
	}
	if err := s.blobs.Upload(ctx, path, contentType, bytes.NewReader(att.Data)); err != nil {
		uploadsTotal.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("%s: %w", kind, err)
	}
	uploadsTotal.WithLabelValues(kind, "ok").Inc()
	return nil
}

// compensate удаляет файлы, загруженные в рамках неудачной фиксации.
// Выполняется с собственным таймаутом: контекст запроса может быть уже отменён.
func (s *SubmissionService) compensate(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if err := s.blobs.Remove(cctx, paths); err != nil {
		s.logger.Error("Не удалось удалить файлы неудачной фиксации",
			slog.Any("paths", paths),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("Файлы неудачной фиксации удалены", slog.Any("paths", paths))
}

func checkEvidenceType(kind, contentType string) error {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch kind {
	case EvidenceReceipt:
		if strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf" {
			return nil
		}
		return &wizard.GuardError{Field: kind, Message: "Envie uma foto ou PDF do comprovante."}
	case EvidenceStatement:
		if mediaType == "application/pdf" {
			return nil
		}
		return &wizard.GuardError{Field: kind, Message: "O extrato deve ser um arquivo PDF."}
	default:
		return fmt.Errorf("%w: неизвестный вид вложения %q", ErrValidation, kind)
	}
}

// attachmentExt определяет расширение по имени файла, затем по MIME-типу.
func attachmentExt(att *wizard.Attachment) string {
	if ext := strings.TrimPrefix(filepath.Ext(att.FileName), "."); ext != "" {
		return ext
	}
	mediaType, _, _ := mime.ParseMediaType(att.ContentType)
	switch mediaType {
	case "application/pdf":
		return "pdf"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

func lockedErr(err error) error {
	if errors.Is(err, wizard.ErrFormLocked) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func view(sess *Session) SessionView {
	return SessionView{
		ID:      sess.ID,
		Step:    sess.Machine.Current(),
		Form:    sess.Machine.Form(),
		History: sess.Machine.History(),
		Busy:    sess.Busy(),
	}
}
