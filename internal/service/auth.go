// auth.go — вход администратора и выпуск токена сессии.
package service

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService проверяет учётные данные администратора и выпускает HS256 JWT.
type AuthService struct {
	user         string
	passwordHash []byte
	secret       []byte
	issuer       string
	ttl          time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewAuthService создаёт сервис. passwordHash — bcrypt-хэш пароля.
func NewAuthService(user, passwordHash, secret, issuer string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		user:         user,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		issuer:       issuer,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "auth")),
	}
}

// Token — выпущенный токен администратора.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Login проверяет логин и пароль и выпускает токен.
// При неверных данных возвращает ErrInvalidCredentials.
func (a *AuthService) Login(user, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	// bcrypt выполняется всегда, чтобы время ответа не зависело от логина
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		a.logger.Warn("Неудачная попытка входа", slog.String("user", user))
		return nil, ErrInvalidCredentials
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   a.user,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	a.logger.Info("Администратор вошёл в систему", slog.String("user", a.user))
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}
