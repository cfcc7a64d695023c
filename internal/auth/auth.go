// Package auth tracks who is signed in. Tokens are JWTs kept in a token
// store so a logout revokes them before they expire.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidPhone indicates a phone number with fewer than ten digits.
var ErrInvalidPhone = errors.New("invalid phone number")

// ErrInvalidOTP indicates a one-time code that is not six digits.
var ErrInvalidOTP = errors.New("invalid one-time code")

// ErrInvalidToken indicates a token that failed verification or was revoked.
var ErrInvalidToken = errors.New("invalid token")

// Tokens stores the current token per subject.
type Tokens interface {
	Get(ctx context.Context, subject string) (string, bool, error)
	Set(ctx context.Context, subject, token string) error
	Delete(ctx context.Context, subject string) error
}

// NormalizePhone strips everything but digits. It fails when fewer than ten
// digits remain.
func NormalizePhone(phone string) (string, error) {
	digits := onlyDigits(phone)
	if len(digits) < 10 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// ValidateOTP accepts exactly six digits.
func ValidateOTP(otp string) error {
	if len(otp) != 6 || onlyDigits(otp) != otp {
		return ErrInvalidOTP
	}
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
