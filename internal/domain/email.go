package domain

import (
	"fmt"
	"strings"

	"github.com/go-user-registration/internal/pkg/validate"
)

// Email is a validated, normalized email address.
type Email string

// NormalizeEmail is the single normalization rule for email identity. Every
// store keyed by email must apply it so lookups never split on casing.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NewEmail normalizes raw and validates its format.
func NewEmail(raw string) (Email, error) {
	v := NormalizeEmail(raw)
	if v == "" {
		return "", fmt.Errorf("email cannot be empty: %w", ErrBadRequest)
	}
	if err := validate.Var(v, "email"); err != nil {
		return "", fmt.Errorf("invalid email format %q: %w", v, ErrBadRequest)
	}
	return Email(v), nil
}

func (e Email) String() string { return string(e) }
