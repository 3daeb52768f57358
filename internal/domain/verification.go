package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// VerificationCodeLength is the number of digits in an activation code.
const VerificationCodeLength = 4

// VerificationCode is a 4-digit numeric activation code.
type VerificationCode string

// NewVerificationCode validates an externally supplied code.
func NewVerificationCode(s string) (VerificationCode, error) {
	if len(s) != VerificationCodeLength {
		return "", fmt.Errorf("verification code must be %d digits: %w", VerificationCodeLength, ErrBadRequest)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("verification code must be numeric: %w", ErrBadRequest)
		}
	}
	return VerificationCode(s), nil
}

// GenerateVerificationCode returns a uniformly random code in 0000-9999.
func GenerateVerificationCode() (VerificationCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return VerificationCode(fmt.Sprintf("%0*d", VerificationCodeLength, n.Int64())), nil
}

// Matches compares in constant time.
func (c VerificationCode) Matches(other string) bool {
	return subtle.ConstantTimeCompare([]byte(c), []byte(other)) == 1
}

func (c VerificationCode) String() string { return string(c) }
