package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goban-dev/goban/internal/apperr"
)

// SessionCookie carries the moderator token between requests.
const SessionCookie = "goban_session"

// TokenService issues and verifies moderator session tokens.
type TokenService struct {
	key []byte
	ttl time.Duration
}

func NewTokenService(key string, ttl time.Duration) *TokenService {
	return &TokenService{key: []byte(key), ttl: ttl}
}

func (t *TokenService) NewToken() (string, error) {
	claims := jwt.MapClaims{
		"role": "moderator",
		"exp":  time.Now().Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

func (t *TokenService) Verify(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil {
		return apperr.Unauthorized("invalid session token")
	}
	if !token.Valid {
		return apperr.Unauthorized("invalid session token")
	}
	return nil
}

// ModeratorOnly gates a route on a valid moderator session cookie.
func ModeratorOnly(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if err := tokens.Verify(cookie.Value); err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
