package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aaron408/vercel-authservice/internal/mailer"
	"github.com/Aaron408/vercel-authservice/internal/models"
	"github.com/Aaron408/vercel-authservice/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock repositories for testing
type mockUserRepo struct {
	users     map[uuid.UUID]*models.User
	createErr error
	linkCalls int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	for _, u := range m.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) LinkGoogleIdentity(ctx context.Context, id uuid.UUID, googleID string, avatarURL *string) error {
	m.linkCalls++
	if u, ok := m.users[id]; ok {
		stored := *u
		stored.GoogleID = &googleID
		stored.ProfilePictureURL = avatarURL
		m.users[id] = &stored
	}
	return nil
}

func (m *mockUserRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	u, _ := m.GetByEmail(ctx, email)
	if u == nil {
		return 0, nil
	}
	return 1, nil
}

type mockSessionRepo struct {
	sessions  map[string]*models.SessionToken
	createErr error
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*models.SessionToken)}
}

func (m *mockSessionRepo) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[token] = &models.SessionToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *mockSessionRepo) Get(ctx context.Context, token string) (*models.SessionToken, error) {
	return m.sessions[token], nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

type storedCode struct {
	email     string
	code      string
	expiresAt time.Time
}

type mockCodeRepo struct {
	codes     []storedCode
	createErr error
	deleteErr error
}

func (m *mockCodeRepo) Create(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.codes = append(m.codes, storedCode{email: email, code: code, expiresAt: expiresAt})
	return nil
}

func (m *mockCodeRepo) Exists(ctx context.Context, email, code string, now time.Time) (bool, error) {
	for _, c := range m.codes {
		if c.email == email && c.code == code && now.Before(c.expiresAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCodeRepo) DeleteForEmail(ctx context.Context, email string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.codes[:0]
	for _, c := range m.codes {
		if c.email != email {
			kept = append(kept, c)
		}
	}
	m.codes = kept
	return nil
}

func (m *mockCodeRepo) latest(email string) string {
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.codes[i].email == email {
			return m.codes[i].code
		}
	}
	return ""
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeVerifier struct {
	identity *GoogleIdentity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.identity
	return &copied, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
