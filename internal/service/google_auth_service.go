package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aaron408/vercel-authservice/internal/models"
	"github.com/Aaron408/vercel-authservice/internal/repository"
)

// SignInPath records how a Google sign-in resolved its user.
type SignInPath string

const (
	SignInExisting SignInPath = "existing"
	SignInLinked   SignInPath = "linked"
	SignInCreated  SignInPath = "created"
)

// SessionResult is returned by every successful sign-in.
type SessionResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
	Path      SignInPath
}

// GoogleAuthService signs users in with a Google id token.
type GoogleAuthService interface {
	SignIn(ctx context.Context, idToken string) (*SessionResult, error)
}

type googleAuthService struct {
	verifier IdentityVerifier
	users    repository.UserRepository
	tokens   TokenService
	lifetime time.Duration
	logger   *slog.Logger
}

// NewGoogleAuthService creates the Google sign-in service. Every session it
// issues lasts lifetime, independent of any remember-me choice.
func NewGoogleAuthService(
	verifier IdentityVerifier,
	users repository.UserRepository,
	tokens TokenService,
	lifetime time.Duration,
	logger *slog.Logger,
) GoogleAuthService {
	return &googleAuthService{
		verifier: verifier,
		users:    users,
		tokens:   tokens,
		lifetime: lifetime,
		logger:   logger,
	}
}

func (s *googleAuthService) SignIn(ctx context.Context, idToken string) (*SessionResult, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	user, path, err := s.resolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(ctx, user, s.lifetime)
	if err != nil {
		if !errors.Is(err, ErrTokenNotPersisted) {
			return nil, err
		}
		s.logger.Error("google sign-in: session token not persisted",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return &SessionResult{User: user, Token: token, ExpiresAt: expiresAt, Path: path}, nil
}

// resolveUser finds the user by Google subject, then by email (linking the
// subject), and otherwise creates one.
func (s *googleAuthService) resolveUser(ctx context.Context, id *GoogleIdentity) (*models.User, SignInPath, error) {
	user, err := s.users.GetByGoogleID(ctx, id.Subject)
	if err != nil {
		return nil, "", err
	}
	if user != nil {
		return user, SignInExisting, nil
	}

	picture := optional(id.Picture)

	user, err = s.users.GetByEmail(ctx, id.Email)
	if err != nil {
		return nil, "", err
	}
	if user != nil {
		if err := s.users.LinkGoogleIdentity(ctx, user.ID, id.Subject, picture); err != nil {
			return nil, "", fmt.Errorf("link google identity: %w", err)
		}
		user.GoogleID = &id.Subject
		user.ProfilePictureURL = picture
		return user, SignInLinked, nil
	}

	user = &models.User{
		Name:              id.Name,
		Email:             id.Email,
		GoogleID:          &id.Subject,
		EmailVerified:     true,
		ProfilePictureURL: picture,
		GivenName:         optional(id.GivenName),
		SubscriptionPlan:  models.DefaultSubscriptionPlan,
		Status:            models.DefaultStatus,
		AccountType:       models.DefaultAccountType,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create google user: %w", err)
	}
	return user, SignInCreated, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ GoogleAuthService = (*googleAuthService)(nil)
