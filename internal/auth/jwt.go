package auth

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	tokenAuth           *jwtauth.JWTAuth
	tokenExpirationTime time.Duration
}

func NewIssuer(secret string, tokenExpirationTime time.Duration) *Issuer {
	return &Issuer{
		tokenAuth:           jwtauth.New("HS256", []byte(secret), nil),
		tokenExpirationTime: tokenExpirationTime,
	}
}

// Issue returns a signed token for subject.
func (i *Issuer) Issue(subject string) (string, error) {
	timeNow := time.Now()
	claims := map[string]any{
		"sub": subject,
		"exp": timeNow.Add(i.tokenExpirationTime).Unix(),
		"iat": timeNow.Unix(),
	}
	_, tokenString, err := i.tokenAuth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encoding token: %w", err)
	}
	return tokenString, nil
}

// Verify checks the signature and expiry and returns the subject.
func (i *Issuer) Verify(tokenString string) (string, error) {
	token, err := jwtauth.VerifyToken(i.tokenAuth, tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.Subject() == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return token.Subject(), nil
}
