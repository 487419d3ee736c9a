package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mkotelnikov/taskboard/internal/api/middleware"
	"github.com/mkotelnikov/taskboard/internal/entity"
)

// AuthUsecase - контракт сервиса авторизации
type AuthUsecase interface {
	Register(ctx context.Context, req *entity.RegisterRequest) (*entity.LoginResponse, error)
	Login(ctx context.Context, req *entity.LoginRequest) (*entity.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*entity.RefreshTokenResponse, error)
	Logout(ctx context.Context, userID string) error
}

type AuthHandler struct {
	authService AuthUsecase
}

func NewAuthHandler(authService AuthUsecase) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register - регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		switch err {
		case entity.ErrInvalidUserData:
			writeError(w, http.StatusBadRequest, "Name, email and password (min 8 chars) are required")
		case entity.ErrEmailTaken:
			writeError(w, http.StatusConflict, "User with this email already exists")
		default:
			log.Printf("❌ Ошибка регистрации: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login - вход по email и паролю
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		switch err {
		case entity.ErrBadCredentials:
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		case entity.ErrUserInactive:
			writeError(w, http.StatusForbidden, "User is not active")
		default:
			log.Printf("❌ Ошибка входа: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Refresh - обмен refresh токена на новую пару
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req entity.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch err {
		case entity.ErrInvalidToken:
			writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		default:
			log.Printf("❌ Ошибка обновления токена: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout - отзываем все refresh токены пользователя
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to log out")
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		log.Printf("❌ Ошибка выхода: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
