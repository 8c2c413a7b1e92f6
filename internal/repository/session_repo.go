package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Aaron408/vercel-authservice/internal/models"
)

// SessionRepository stores issued session tokens.
type SessionRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	// Get returns the stored token regardless of expiry, or nil, nil.
	Get(ctx context.Context, token string) (*models.SessionToken, error)
	// Delete removes the token. Unknown tokens are not an error.
	Delete(ctx context.Context, token string) error
}

type sessionRepo struct {
	db DBTX
}

// NewSessionRepository creates a new session token repository.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	query := `INSERT INTO session_token (user_id, token, expires_date) VALUES ($1, $2, $3)`

	if _, err := r.db.Exec(ctx, query, userID, token, expiresAt); err != nil {
		return fmt.Errorf("insert session token: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, token string) (*models.SessionToken, error) {
	query := `SELECT user_id, token, expires_date, created_at FROM session_token WHERE token = $1`

	var s models.SessionToken
	err := r.db.QueryRow(ctx, query, token).Scan(&s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session token: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, token string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM session_token WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

var _ SessionRepository = (*sessionRepo)(nil)
