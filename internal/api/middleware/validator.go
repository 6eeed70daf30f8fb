// validator.go — проверка входящих запросов по OpenAPI контракту.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
)

// RequestValidator возвращает middleware, проверяющий параметры и JSON-тела
// запросов по контракту. Пути вне контракта (например, /files/*) пропускаются.
// Аутентификация здесь не проверяется: это делает JWTAuth.
// Тела multipart/form-data проверяются обработчиками.
func RequestValidator(router routers.Router, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "openapi_validator"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				// Маршрут не описан в контракте — решает chi (404/405)
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					ExcludeRequestBody: strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"),
					MultiError:         false,
				},
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.Debug("Запрос не соответствует контракту",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage возвращает краткое описание ошибки без дампа схемы.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return "Некорректный параметр " + reqErr.Parameter.Name + ": " + reqErr.Reason
		}
		if reqErr.RequestBody != nil {
			if reqErr.Reason != "" {
				return "Некорректное тело запроса: " + reqErr.Reason
			}
			return "Некорректное тело запроса"
		}
	}
	return "Запрос не соответствует контракту"
}
