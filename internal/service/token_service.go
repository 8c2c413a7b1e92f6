// Package service implements session tokens, Google sign-in, password login
// and email verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Aaron408/vercel-authservice/internal/models"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/ulid"
	"github.com/Aaron408/vercel-authservice/internal/repository"
)

// ErrTokenNotPersisted wraps a store failure after a token was signed. The
// returned token is valid to hand out but Verify will reject it.
var ErrTokenNotPersisted = errors.New("session token not persisted")

// SessionClaims are the claims embedded in every session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// TokenService issues, verifies and revokes session tokens.
type TokenService interface {
	// Issue signs a token for user valid for lifetime and stores it.
	Issue(ctx context.Context, user *models.User, lifetime time.Duration) (token string, expiresAt time.Time, err error)
	// Verify returns the user bound to a stored, unexpired, correctly signed token.
	Verify(ctx context.Context, token string) (uuid.UUID, error)
	// Revoke deletes the token. Unknown tokens are not an error.
	Revoke(ctx context.Context, token string) error
}

type tokenService struct {
	secret   []byte
	sessions repository.SessionRepository
	now      func() time.Time
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string, sessions repository.SessionRepository) (TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", apierrors.ErrConfig)
	}
	return &tokenService{
		secret:   []byte(secret),
		sessions: sessions,
		now:      time.Now,
	}, nil
}

func (s *tokenService) Issue(ctx context.Context, user *models.User, lifetime time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: jwt secret is empty", apierrors.ErrConfig)
	}

	now := s.now()
	// Whole seconds so the stored expiry matches the exp claim exactly.
	expiresAt := now.Add(lifetime).Truncate(time.Second)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.NewFromTime(now),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID.String(),
		Email:  user.Email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.sessions.Create(ctx, user.ID, token, expiresAt); err != nil {
		return token, expiresAt, fmt.Errorf("%w: %w", ErrTokenNotPersisted, err)
	}

	return token, expiresAt, nil
}

func (s *tokenService) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apierrors.ErrUnauthorized
	}

	stored, err := s.sessions.Get(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if stored == nil {
		return uuid.Nil, apierrors.ErrUnauthorized
	}
	if stored.IsExpired(s.now()) {
		return uuid.Nil, apierrors.ErrSessionExpired
	}

	claims := &SessionClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, apierrors.ErrSessionExpired
	case err != nil:
		return uuid.Nil, apierrors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID != stored.UserID {
		return uuid.Nil, apierrors.ErrUnauthorized
	}
	return userID, nil
}

func (s *tokenService) Revoke(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

var _ TokenService = (*tokenService)(nil)
