package auth

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

type PasswordManager struct {
	cost int
}

// NewPasswordManager читает стоимость bcrypt из BCRYPT_COST,
// значения вне допустимого диапазона игнорируем
func NewPasswordManager() *PasswordManager {
	cost := bcrypt.DefaultCost
	if value := os.Getenv("BCRYPT_COST"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= bcrypt.MinCost && parsed <= bcrypt.MaxCost {
			cost = parsed
		}
	}
	return &PasswordManager{
		cost: cost,
	}
}

// HashPassword хеширует пароль
func (m *PasswordManager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword проверяет пароль против хеша
func (m *PasswordManager) VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
