package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Aaron408/vercel-authservice/internal/models"
)

// UserRepository defines the interface for user data operations.
// Getters return nil, nil when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	LinkGoogleIdentity(ctx context.Context, id uuid.UUID, googleID string, avatarURL *string) error
	CountByEmail(ctx context.Context, email string) (int, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, name, email, password_hash, google_id, email_verified, profile_picture_url,
		       given_name, subscription_plan, status, type, created_at, updated_at`

// Create inserts a new user. ID is generated when unset; defaults for plan,
// status and type are applied when zero.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, google_id, email_verified, profile_picture_url,
		                   given_name, subscription_plan, status, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.SubscriptionPlan == 0 {
		user.SubscriptionPlan = models.DefaultSubscriptionPlan
	}
	if user.Status == 0 {
		user.Status = models.DefaultStatus
	}
	if user.AccountType == 0 {
		user.AccountType = models.DefaultAccountType
	}

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.GoogleID,
		user.EmailVerified,
		user.ProfilePictureURL,
		user.GivenName,
		user.SubscriptionPlan,
		user.Status,
		user.AccountType,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByGoogleID retrieves a user by Google subject id.
func (r *userRepo) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.GoogleID,
		&u.EmailVerified,
		&u.ProfilePictureURL,
		&u.GivenName,
		&u.SubscriptionPlan,
		&u.Status,
		&u.AccountType,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// LinkGoogleIdentity attaches a Google subject id and avatar to an existing user.
func (r *userRepo) LinkGoogleIdentity(ctx context.Context, id uuid.UUID, googleID string, avatarURL *string) error {
	query := `UPDATE users SET google_id = $2, profile_picture_url = $3, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, googleID, avatarURL); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("link google identity: %w", err)
	}
	return nil
}

// CountByEmail returns how many users hold the email (0 or 1).
func (r *userRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Compile-time check
var _ UserRepository = (*userRepo)(nil)
