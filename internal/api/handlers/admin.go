// admin.go — административные обработчики: вход, заявки, очистка.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/api/middleware"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/claimfilter"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/service"
)

// --- DTO ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type filesDTO struct {
	Receipts  []string `json:"receipts"`
	Statement string   `json:"statement,omitempty"`
}

type claimDTO struct {
	ID         string              `json:"id"`
	Protocol   string              `json:"protocol,omitempty"`
	DriverName string              `json:"driver_name,omitempty"`
	TripDate   *openapi_types.Date `json:"trip_date,omitempty"`
	Plate      string              `json:"plate,omitempty"`
	Operation  string              `json:"operation,omitempty"`
	Amount     *float64            `json:"amount"`
	Phone      string              `json:"phone,omitempty"`
	Email      string              `json:"email,omitempty"`
	Files      filesDTO            `json:"files"`
	CreatedAt  time.Time           `json:"created_at"`
}

type claimListResponse struct {
	Claims []claimDTO `json:"claims"`
	Total  float64    `json:"total"`
	Count  int        `json:"count"`
}

type sweepResponse struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Scanned     int       `json:"scanned"`
	Referenced  int       `json:"referenced"`
	Young       int       `json:"young"`
	Removed     []string  `json:"removed"`
	Failed      string    `json:"failed,omitempty"`
}

func toClaimDTO(c *model.Claim) claimDTO {
	files := c.Files()
	dto := claimDTO{
		ID:         c.ID,
		Protocol:   c.Protocol,
		DriverName: c.DriverName,
		Plate:      c.Plate,
		Operation:  string(c.Operation),
		Phone:      c.Phone,
		Email:      c.Email,
		Files:      filesDTO{Receipts: files.Receipts, Statement: files.Statement},
		CreatedAt:  c.CreatedAt,
	}
	if dto.Files.Receipts == nil {
		dto.Files.Receipts = []string{}
	}
	if !c.TripDate.IsZero() {
		dto.TripDate = &openapi_types.Date{Time: c.TripDate}
	}
	if c.Amount != nil {
		reais := c.Amount.Reais()
		dto.Amount = &reais
	}
	return dto
}

// bindCriteria разбирает параметры фильтра q, operation, start, end.
func bindCriteria(query url.Values) (claimfilter.Criteria, error) {
	var (
		q          *string
		operation  *string
		start, end *openapi_types.Date
	)
	if err := runtime.BindQueryParameter("form", true, false, "q", query, &q); err != nil {
		return claimfilter.Criteria{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "operation", query, &operation); err != nil {
		return claimfilter.Criteria{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "start", query, &start); err != nil {
		return claimfilter.Criteria{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "end", query, &end); err != nil {
		return claimfilter.Criteria{}, err
	}

	c := claimfilter.Criteria{Operation: model.OperationAll}
	if q != nil {
		c.Query = *q
	}
	if operation != nil && *operation != "" {
		c.Operation = model.Operation(*operation)
	}
	if start != nil {
		c.Start = &start.Time
	}
	if end != nil {
		c.End = &end.Time
	}
	return c, nil
}

// --- Обработчики ---

// AdminLogin — POST /api/v1/admin/login.
// Выпускает токен и устанавливает его в cookie сессии.
// При проверке токенов по JWKS внешнего IdP вход отключён (auth == nil).
func (h *APIHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		apierrors.NotFound(w, "Вход отключён: токены выпускает внешний IdP")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tok, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    tok.Value,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt})
}

// ListClaims — GET /api/v1/admin/claims.
func (h *APIHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	criteria, err := bindCriteria(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.claims.List(r.Context(), criteria)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := claimListResponse{
		Claims: make([]claimDTO, 0, len(result.Claims)),
		Total:  result.Total.Reais(),
		Count:  result.Count,
	}
	for _, c := range result.Claims {
		resp.Claims = append(resp.Claims, toClaimDTO(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetClaim — GET /api/v1/admin/claims/{key}, key — протокол.
func (h *APIHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.GetByProtocol(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(claim))
}

// DeleteClaim — DELETE /api/v1/admin/claims/{key}, key — идентификатор.
// Если файлы удалить не удалось, отвечает 207 со списком оставшихся файлов.
func (h *APIHandler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.claims.Delete(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		var partial *service.PartialDeleteError
		if errors.As(err, &partial) {
			apierrors.PartialDelete(w,
				"Заявка удалена, но часть файлов могла остаться в хранилище", partial.Orphaned)
			return
		}
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("Заявка удалена администратором",
		slog.String("claim_id", claim.ID),
		slog.String("protocol", claim.Protocol),
		slog.String("admin", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// SweepOrphans — POST /api/v1/admin/maintenance/orphans.
func (h *APIHandler) SweepOrphans(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrBusy) {
			apierrors.Conflict(w, "Очистка уже выполняется")
			return
		}
		h.writeServiceError(w, err)
		return
	}

	removed := result.Removed
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Scanned:     result.Scanned,
		Referenced:  result.Referenced,
		Young:       result.Young,
		Removed:     removed,
		Failed:      result.Failed,
	})
}
