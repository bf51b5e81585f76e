package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger is the logging interface used by auth.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Service authenticates staff and issues access tokens.
type Service struct {
	users      UserRepository
	secret     string
	ttlMinutes int
	logger     Logger
}

// NewService creates a Service signing tokens with secret.
func NewService(users UserRepository, secret string, ttlMinutes int) *Service {
	return &Service{users: users, secret: secret, ttlMinutes: ttlMinutes, logger: noopLogger{}}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Login verifies username and password and returns a signed token.
//
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials so
// the response does not reveal which accounts exist.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Info("login failed", "username", username, "reason", "unknown user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		s.logger.Info("login failed", "username", username, "reason", "bad password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	token, expires, err := GenerateAccessToken(user, s.secret, s.ttlMinutes)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded", "user_id", user.ID, "role", string(user.Role))
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Authenticate parses an access token issued by Login.
func (s *Service) Authenticate(token string) (*CustomClaims, error) {
	return ParseToken(token, s.secret)
}

// ChangePassword replaces a user's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}
