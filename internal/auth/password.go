package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// ValidatePassword enforces the minimum length. field names the input in
// the validation error.
func ValidatePassword(password string, minLength int, field string) error {
	if strings.TrimSpace(password) == "" || len(password) < minLength {
		return apperrors.NewValidationError("password too short", map[string]any{
			"fields":     []string{field},
			"min_length": minLength,
		})
	}
	return nil
}
