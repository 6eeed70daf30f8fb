// submissions.go — обработчики мастера подачи заявки водителем.
//
//	POST   /api/v1/submissions                       — новая сессия
//	GET    /api/v1/submissions/{id}                  — текущий шаг и форма
//	PATCH  /api/v1/submissions/{id}/fields           — ввод полей (маски)
//	POST   /api/v1/submissions/{id}/events           — next, back, select_operation
//	PUT    /api/v1/submissions/{id}/evidence/{kind}  — приложить файл
//	DELETE /api/v1/submissions/{id}/evidence/{kind}  — убрать файл
//	POST   /api/v1/submissions/{id}/commit           — фиксация заявки
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/wizard"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/service"
)

// multipartMemory — часть multipart-формы, держащаяся в памяти.
const multipartMemory = 8 << 20

// --- DTO ---

type attachmentDTO struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type formDTO struct {
	TripDate   *openapi_types.Date `json:"trip_date,omitempty"`
	Plate      string              `json:"plate,omitempty"`
	Operation  string              `json:"operation,omitempty"`
	Amount     string              `json:"amount,omitempty"`
	Phone      string              `json:"phone,omitempty"`
	Email      string              `json:"email,omitempty"`
	DriverName string              `json:"driver_name,omitempty"`
	Receipt    *attachmentDTO      `json:"receipt,omitempty"`
	Statement  *attachmentDTO      `json:"statement,omitempty"`
	Protocol   string              `json:"protocol,omitempty"`
}

type sessionDTO struct {
	ID      string                    `json:"id"`
	Step    wizard.Step               `json:"step"`
	Busy    bool                      `json:"busy"`
	Form    formDTO                   `json:"form"`
	History []wizard.TransitionRecord `json:"history"`
}

type fieldsRequest struct {
	TripDate   *openapi_types.Date `json:"trip_date"`
	Plate      *string             `json:"plate"`
	Amount     *string             `json:"amount"`
	Phone      *string             `json:"phone"`
	Email      *string             `json:"email"`
	DriverName *string             `json:"driver_name"`
}

type eventRequest struct {
	Event     wizard.Event    `json:"event"`
	Operation model.Operation `json:"operation"`
}

type commitResponse struct {
	Protocol string `json:"protocol"`
}

type operationsResponse struct {
	Operations []model.Operation `json:"operations"`
}

func toSessionDTO(v service.SessionView) sessionDTO {
	f := v.Form
	dto := sessionDTO{
		ID:      v.ID,
		Step:    v.Step,
		Busy:    v.Busy,
		History: v.History,
		Form: formDTO{
			Plate:      f.Plate,
			Operation:  string(f.Operation),
			Amount:     f.Amount,
			Phone:      f.Phone,
			Email:      f.Email,
			DriverName: f.DriverName,
			Receipt:    toAttachmentDTO(f.Receipt),
			Statement:  toAttachmentDTO(f.Statement),
			Protocol:   f.Protocol,
		},
	}
	if dto.History == nil {
		dto.History = []wizard.TransitionRecord{}
	}
	if !f.TripDate.IsZero() {
		dto.Form.TripDate = &openapi_types.Date{Time: f.TripDate}
	}
	return dto
}

func toAttachmentDTO(a *wizard.Attachment) *attachmentDTO {
	if a == nil {
		return nil
	}
	return &attachmentDTO{FileName: a.FileName, ContentType: a.ContentType, Size: len(a.Data)}
}

// --- Обработчики ---

// ListOperations — GET /api/v1/operations.
func (h *APIHandler) ListOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, operationsResponse{Operations: model.Operations})
}

// CreateSubmission — POST /api/v1/submissions.
func (h *APIHandler) CreateSubmission(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, toSessionDTO(h.submissions.Create()))
}

// GetSubmission — GET /api/v1/submissions/{id}.
func (h *APIHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	v, err := h.submissions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(v))
}

// UpdateSubmissionFields — PATCH /api/v1/submissions/{id}/fields.
func (h *APIHandler) UpdateSubmissionFields(w http.ResponseWriter, r *http.Request) {
	var req fieldsRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	in := service.FieldsInput{
		Plate:      req.Plate,
		Amount:     req.Amount,
		Phone:      req.Phone,
		Email:      req.Email,
		DriverName: req.DriverName,
	}
	if req.TripDate != nil {
		t := req.TripDate.Time
		in.TripDate = &t
	}

	v, err := h.submissions.UpdateFields(chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(v))
}

// FireSubmissionEvent — POST /api/v1/submissions/{id}/events.
func (h *APIHandler) FireSubmissionEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	var (
		v   service.SessionView
		err error
	)
	if req.Event == wizard.EventSelectOperation {
		v, err = h.submissions.SelectOperation(id, req.Operation)
	} else {
		v, err = h.submissions.Fire(id, req.Event)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(v))
}

// AttachEvidence — PUT /api/v1/submissions/{id}/evidence/{kind}.
// Файл передаётся полем "file" формы multipart/form-data.
func (h *APIHandler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	// Запас на заголовки multipart сверх лимита файла
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FieldError(w, chi.URLParam(r, "kind"), "Arquivo muito grande.")
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует поле file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	v, err := h.submissions.AttachEvidence(
		chi.URLParam(r, "id"), chi.URLParam(r, "kind"), header.Filename, contentType, file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(v))
}

// DetachEvidence — DELETE /api/v1/submissions/{id}/evidence/{kind}.
func (h *APIHandler) DetachEvidence(w http.ResponseWriter, r *http.Request) {
	v, err := h.submissions.DetachEvidence(chi.URLParam(r, "id"), chi.URLParam(r, "kind"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(v))
}

// CommitSubmission — POST /api/v1/submissions/{id}/commit.
func (h *APIHandler) CommitSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	protocol, err := h.submissions.Commit(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("Заявка принята",
		slog.String("session_id", id),
		slog.String("protocol", protocol),
	)
	writeJSON(w, http.StatusCreated, commitResponse{Protocol: protocol})
}
