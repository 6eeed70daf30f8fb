// auth.go — JWT middleware административных endpoints.
// Токен берётся из заголовка Authorization: Bearer или из cookie сессии.
// Подпись проверяется HMAC-секретом (токены, выпущенные /admin/login)
// либо ключами JWKS внешнего IdP, если задан RV_JWT_JWKS_URL.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/Nicolas1xx/Rivilog-LOG/internal/api/errors"
)

// SessionCookieName — cookie с токеном администратора.
const SessionCookieName = "rivilog_admin_session"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const contextKeySubject contextKey = "jwt_subject"

// JWTAuth — middleware для JWT-аутентификации администратора.
type JWTAuth struct {
	keyfunc func(ctx context.Context) jwt.Keyfunc
	methods []string
	issuer  string
	leeway  time.Duration
	logger  *slog.Logger
}

// NewHMACAuth создаёт middleware, проверяющий HS256-токены общим секретом.
func NewHMACAuth(secret, issuer string, logger *slog.Logger) *JWTAuth {
	key := []byte(secret)
	return &JWTAuth{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return key, nil }
		},
		methods: []string{"HS256"},
		issuer:  issuer,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWKSAuth создаёт middleware с ключами из JWKS внешнего IdP.
// jwksClientTimeout — таймаут HTTP-клиента JWKS,
// jwksRefreshInterval — интервал фонового обновления ключей.
func NewJWKSAuth(
	jwksURL string,
	issuer string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с предоставленной keyfunc (RS256).
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfunc: kf.KeyfuncCtx,
		methods: []string{"RS256"},
		issuer:  issuer,
		leeway:  30 * time.Second,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Subject токена помещается в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := tokenFromRequest(r)
			if tokenString == "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			claims := &jwt.RegisteredClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods(j.methods),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, claims, j.keyfunc(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if claims.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeySubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest извлекает токен: сначала Bearer, затем cookie.
// При отсутствии токена возвращает сообщение для ответа 401.
func tokenFromRequest(r *http.Request) (token, msg string) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", "Неверный формат Authorization: ожидается Bearer <token>"
		}
		if parts[1] == "" {
			return "", "Пустой Bearer token"
		}
		return parts[1], ""
	}

	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, ""
	}
	return "", "Требуется вход администратора"
}

// SubjectFromContext извлекает sub токена из контекста запроса.
// Возвращает пустую строку, если запрос не прошёл аутентификацию.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(contextKeySubject).(string)
	return sub
}
