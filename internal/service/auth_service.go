package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aaron408/vercel-authservice/internal/models"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/repository"
)

// SessionLifetimes holds how long password-login sessions last.
type SessionLifetimes struct {
	Default    time.Duration
	RememberMe time.Duration
}

// AuthService handles password login, logout and account lookups.
type AuthService interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (*SessionResult, error)
	Logout(ctx context.Context, token string) error
	EmailExists(ctx context.Context, email string) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    TokenService
	hasher    PasswordHasher
	lifetimes SessionLifetimes
	logger    *slog.Logger
}

// NewAuthService creates the password login service.
func NewAuthService(
	users repository.UserRepository,
	tokens TokenService,
	hasher PasswordHasher,
	lifetimes SessionLifetimes,
	logger *slog.Logger,
) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		lifetimes: lifetimes,
		logger:    logger,
	}
}

func (s *authService) Login(ctx context.Context, email, password string, rememberMe bool) (*SessionResult, error) {
	if err := requireFields(map[string]string{"email": email, "password": password}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() || !s.hasher.Verify(*user.PasswordHash, password) {
		return nil, apierrors.ErrInvalidCredentials
	}

	lifetime := s.lifetimes.Default
	if rememberMe {
		lifetime = s.lifetimes.RememberMe
	}

	token, expiresAt, err := s.tokens.Issue(ctx, user, lifetime)
	if err != nil {
		if !errors.Is(err, ErrTokenNotPersisted) {
			return nil, err
		}
		s.logger.Error("login: session token not persisted",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return &SessionResult{User: user, Token: token, ExpiresAt: expiresAt, Path: SignInExisting}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apierrors.NewValidationError("session_token", "session_token is required")
	}
	return s.tokens.Revoke(ctx, token)
}

func (s *authService) EmailExists(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, apierrors.NewValidationError("email", "email is required")
	}
	count, err := s.users.CountByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierrors.ErrUnauthorized
	}
	return user, nil
}

// requireFields returns a validation error naming every empty field.
func requireFields(fields map[string]string) error {
	missing := make(map[string]string)
	for name, value := range fields {
		if value == "" {
			missing[name] = name + " is required"
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apierrors.NewValidationErrors(missing)
}

var _ AuthService = (*authService)(nil)
