package middleware

import (
	"CamKeeper/internal/model"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName — имя cookie с JWT.
const CookieName = "auth_token"

var ErrInvalidToken = errors.New("invalid token")

type ctxKey string

const principalKey ctxKey = "principal"

// Claims — утверждения токена: стандартные плюс идентификатор и флаг суперпользователя.
type Claims struct {
	jwt.RegisteredClaims
	UserID      int64 `json:"user_id"`
	IsSuperuser bool  `json:"is_superuser"`
}

// GenerateToken подписывает токен HS256.
func GenerateToken(p model.Principal, secret string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		UserID:      p.UserID,
		IsSuperuser: p.IsSuperuser,
	})
	return token.SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок действия.
func ParseToken(tokenString, secret string) (*model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &model.Principal{UserID: claims.UserID, IsSuperuser: claims.IsSuperuser}, nil
}

// SetLoginCookie выпускает токен, кладёт его в cookie и возвращает для тела ответа.
func SetLoginCookie(w http.ResponseWriter, p model.Principal, secret string, ttl time.Duration) (string, error) {
	token, err := GenerateToken(p, secret, ttl)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(ttl),
	})
	return token, nil
}

// WithAuth кладёт в контекст субъекта из cookie или заголовка Authorization: Bearer.
// Запрос без токена или с невалидным токеном проходит дальше анонимным,
// решение об отказе принимает хендлер.
func WithAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := ParseToken(raw, secret)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithPrincipal возвращает контекст с субъектом.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipalFromContext возвращает субъекта запроса, если он аутентифицирован.
func GetPrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok && p != nil
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	p, ok := GetPrincipalFromContext(ctx)
	if !ok {
		return 0, false
	}
	return p.UserID, true
}
