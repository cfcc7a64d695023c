package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Manager signs users in and out.
type Manager struct {
	issuer *Issuer
	tokens Tokens
	logger *zap.Logger
}

func NewManager(issuer *Issuer, tokens Tokens, logger *zap.Logger) *Manager {
	return &Manager{issuer: issuer, tokens: tokens, logger: logger}
}

// Login checks the phone and one-time code and starts a session. Any
// well-formed six-digit code is accepted.
func (m *Manager) Login(ctx context.Context, phone, otp string) (string, error) {
	subject, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	if err := ValidateOTP(otp); err != nil {
		return "", err
	}
	token, err := m.issuer.Issue(subject)
	if err != nil {
		return "", err
	}
	if err := m.tokens.Set(ctx, subject, token); err != nil {
		return "", err
	}
	m.logger.Info("session started", zap.String("subject", subject))
	return token, nil
}

// Logout revokes the subject's token.
func (m *Manager) Logout(ctx context.Context, subject string) error {
	if err := m.tokens.Delete(ctx, subject); err != nil {
		return err
	}
	m.logger.Info("session ended", zap.String("subject", subject))
	return nil
}

// Authenticate verifies token and checks it is the subject's current one.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, error) {
	subject, err := m.issuer.Verify(token)
	if err != nil {
		return "", err
	}
	stored, ok, err := m.tokens.Get(ctx, subject)
	if err != nil {
		return "", err
	}
	if !ok || stored != token {
		return "", fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	return subject, nil
}

// Session returns the session bound to subject.
func (m *Manager) Session(subject string) *Session {
	return &Session{subject: subject, manager: m}
}

// Session is one subject's authentication state.
type Session struct {
	subject string
	manager *Manager
}

func (s *Session) Subject() string {
	return s.subject
}

// IsAuthenticated reports whether the subject holds a valid, unrevoked token.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	token, ok := s.Token(ctx)
	if !ok {
		return false
	}
	subject, err := s.manager.issuer.Verify(token)
	return err == nil && subject == s.subject
}

// Token returns the stored token, if any.
func (s *Session) Token(ctx context.Context) (string, bool) {
	token, ok, err := s.manager.tokens.Get(ctx, s.subject)
	if err != nil {
		s.manager.logger.Warn("reading session token", zap.String("subject", s.subject), zap.Error(err))
		return "", false
	}
	return token, ok
}

// SetToken replaces the stored token after verifying it belongs to the subject.
func (s *Session) SetToken(ctx context.Context, token string) error {
	subject, err := s.manager.issuer.Verify(token)
	if err != nil {
		return err
	}
	if subject != s.subject {
		return fmt.Errorf("%w: token belongs to another subject", ErrInvalidToken)
	}
	return s.manager.tokens.Set(ctx, s.subject, token)
}

// Clear revokes the session.
func (s *Session) Clear(ctx context.Context) error {
	return s.manager.Logout(ctx, s.subject)
}
