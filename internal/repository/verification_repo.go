package repository

import (
	"context"
	"fmt"
	"time"
)

// VerificationCodeRepository stores one-time email verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, email, code string, expiresAt time.Time) error
	// Exists reports whether an unexpired code matches both email and code at now.
	Exists(ctx context.Context, email, code string, now time.Time) (bool, error)
	DeleteForEmail(ctx context.Context, email string) error
}

type verificationRepo struct {
	db DBTX
}

// NewVerificationCodeRepository creates a Postgres-backed code repository.
func NewVerificationCodeRepository(db DBTX) VerificationCodeRepository {
	return &verificationRepo{db: db}
}

func (r *verificationRepo) Create(ctx context.Context, email, code string, expiresAt time.Time) error {
	query := `INSERT INTO verification_codes (email, code, expires_at) VALUES ($1, $2, $3)`

	if _, err := r.db.Exec(ctx, query, email, code, expiresAt); err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

func (r *verificationRepo) Exists(ctx context.Context, email, code string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM verification_codes
			WHERE email = $1 AND code = $2 AND expires_at > $3
		)`

	var ok bool
	if err := r.db.QueryRow(ctx, query, email, code, now).Scan(&ok); err != nil {
		return false, fmt.Errorf("select verification code: %w", err)
	}
	return ok, nil
}

func (r *verificationRepo) DeleteForEmail(ctx context.Context, email string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM verification_codes WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete verification codes: %w", err)
	}
	return nil
}

var _ VerificationCodeRepository = (*verificationRepo)(nil)
