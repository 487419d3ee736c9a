package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkotelnikov/taskboard/internal/entity"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenValidator проверяет access token и возвращает claims
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*entity.JWTClaims, error)
}

// Auth разбирает Bearer токен и кладет ID пользователя в контекст запроса.
// Запрос без токена пропускаем дальше - каждый обработчик сам решает,
// что ответить неавторизованному (сообщения различаются по операциям).
// Запрос с невалидным токеном отклоняем сразу.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, "Invalid authorization header")
				return
			}

			claims, err := validator.ValidateAccessToken(tokenString)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext возвращает ID авторизованного пользователя
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
