package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha-forte"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuthService("admin", string(hash), testSecret, "rivilog", time.Hour, testLogger())
}

func TestAuthService_Login(t *testing.T) {
	auth := newTestAuth(t)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	tok, err := auth.Login("admin", "s3nha-forte")
	if err != nil {
		t.Fatalf("Login() ошибка: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", tok.ExpiresAt)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tok.Value, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now.Add(time.Minute) }),
	)
	if err != nil {
		t.Fatalf("токен не проходит проверку: %v", err)
	}
	if claims.Subject != "admin" || claims.Issuer != "rivilog" || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAuthService_InvalidCredentials(t *testing.T) {
	auth := newTestAuth(t)

	tests := []struct {
		name, user, password string
	}{
		{"неверный пароль", "admin", "errada"},
		{"неверный логин", "root", "s3nha-forte"},
		{"пустые данные", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Login(tt.user, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() = %v, ожидается ErrInvalidCredentials", err)
			}
		})
	}
}
