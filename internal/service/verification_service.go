package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Aaron408/vercel-authservice/internal/config"
	"github.com/Aaron408/vercel-authservice/internal/mailer"
	"github.com/Aaron408/vercel-authservice/internal/models"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/repository"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// VerificationService issues email verification codes and registers users.
type VerificationService interface {
	RequestCode(ctx context.Context, email string) error
	CheckCode(ctx context.Context, email, code string) (bool, error)
	// Register creates a password account. It does not require a checked
	// code; clients are expected to call CheckCode first.
	Register(ctx context.Context, name, email, password string) (uuid.UUID, error)
}

type verificationService struct {
	codes   repository.VerificationCodeRepository
	users   repository.UserRepository
	hasher  PasswordHasher
	sender  mailer.Sender
	mail    config.MailConfig
	codeTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewVerificationService creates the signup verification service.
func NewVerificationService(
	codes repository.VerificationCodeRepository,
	users repository.UserRepository,
	hasher PasswordHasher,
	sender mailer.Sender,
	mail config.MailConfig,
	codeTTL time.Duration,
	logger *slog.Logger,
) VerificationService {
	return &verificationService{
		codes:   codes,
		users:   users,
		hasher:  hasher,
		sender:  sender,
		mail:    mail,
		codeTTL: codeTTL,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *verificationService) RequestCode(ctx context.Context, email string) error {
	if email == "" {
		return apierrors.NewValidationError("email", "email is required")
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := s.codes.Create(ctx, email, code, s.now().Add(s.codeTTL)); err != nil {
		return err
	}

	// The code stays stored even if delivery fails.
	if err := s.sender.Send(ctx, s.codeMessage(email, code)); err != nil {
		s.logger.Error("verification code not delivered",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return apierrors.ErrDelivery
	}
	return nil
}

func (s *verificationService) codeMessage(email, code string) mailer.Message {
	minutes := int(math.Ceil(s.codeTTL.Minutes()))
	return mailer.Message{
		FromName:    s.mail.FromName,
		FromAddress: s.mail.Sender(),
		To:          email,
		Subject:     s.mail.Subject,
		Body: fmt.Sprintf(
			"Tu código de verificación es: %s\n\nEste código expira en %d minutos.\n",
			code, minutes,
		),
	}
}

func (s *verificationService) CheckCode(ctx context.Context, email, code string) (bool, error) {
	if err := requireFields(map[string]string{"email": email, "code": code}); err != nil {
		return false, err
	}
	return s.codes.Exists(ctx, email, code, s.now())
}

func (s *verificationService) Register(ctx context.Context, name, email, password string) (uuid.UUID, error) {
	if err := requireFields(map[string]string{"name": name, "email": email, "password": password}); err != nil {
		return uuid.Nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return uuid.Nil, apierrors.ErrConflict
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return uuid.Nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return uuid.Nil, apierrors.ErrConflict
		}
		return uuid.Nil, err
	}

	if err := s.codes.DeleteForEmail(ctx, email); err != nil {
		s.logger.Warn("verification codes not cleared after registration",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	return user.ID, nil
}

// generateCode returns a uniformly random code in [codeMin, codeMax].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

var _ VerificationService = (*verificationService)(nil)
