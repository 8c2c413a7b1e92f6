package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaron408/vercel-authservice/internal/models"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/response"
	"github.com/Aaron408/vercel-authservice/internal/service"
)

// mockAuthService is a mock implementation of AuthService for testing.
type mockAuthService struct {
	loginFunc       func(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error)
	logoutFunc      func(ctx context.Context, token string) error
	emailExistsFunc func(ctx context.Context, email string) (bool, error)
	getUserFunc     func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password, rememberMe)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFunc != nil {
		return m.emailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *mockAuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, id)
	}
	return nil, apierrors.ErrUnauthorized
}

type mockGoogleService struct {
	signInFunc func(ctx context.Context, idToken string) (*service.SessionResult, error)
}

func (m *mockGoogleService) SignIn(ctx context.Context, idToken string) (*service.SessionResult, error) {
	return m.signInFunc(ctx, idToken)
}

type mockVerificationService struct {
	requestCodeFunc func(ctx context.Context, email string) error
	checkCodeFunc   func(ctx context.Context, email, code string) (bool, error)
	registerFunc    func(ctx context.Context, name, email, password string) (uuid.UUID, error)
}

func (m *mockVerificationService) RequestCode(ctx context.Context, email string) error {
	if m.requestCodeFunc != nil {
		return m.requestCodeFunc(ctx, email)
	}
	return nil
}

func (m *mockVerificationService) CheckCode(ctx context.Context, email, code string) (bool, error) {
	if m.checkCodeFunc != nil {
		return m.checkCodeFunc(ctx, email, code)
	}
	return false, nil
}

func (m *mockVerificationService) Register(ctx context.Context, name, email, password string) (uuid.UUID, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, name, email, password)
	}
	return uuid.Nil, nil
}

type mockTokenService struct {
	verifyFunc func(ctx context.Context, token string) (uuid.UUID, error)
}

func (m *mockTokenService) Issue(ctx context.Context, user *models.User, lifetime time.Duration) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not used")
}

func (m *mockTokenService) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, token)
	}
	return uuid.Nil, apierrors.ErrUnauthorized
}

func (m *mockTokenService) Revoke(ctx context.Context, token string) error {
	return nil
}

type handlerDeps struct {
	auth         *mockAuthService
	google       *mockGoogleService
	verification *mockVerificationService
	tokens       *mockTokenService
}

func newTestHandler(deps handlerDeps) http.Handler {
	if deps.auth == nil {
		deps.auth = &mockAuthService{}
	}
	if deps.google == nil {
		deps.google = &mockGoogleService{}
	}
	if deps.verification == nil {
		deps.verification = &mockVerificationService{}
	}
	if deps.tokens == nil {
		deps.tokens = &mockTokenService{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthHandler(deps.auth, deps.google, deps.verification, deps.tokens, logger).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func sessionResult(path service.SignInPath) *service.SessionResult {
	return &service.SessionResult{
		User:  &models.User{ID: uuid.New(), Name: "Ana", Email: "a@x.com", AccountType: 1},
		Token: "jwt-token",
		Path:  path,
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		loginFunc      func(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error)
		expectedStatus int
		checkResponse  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name: "logs in with remember me",
			body: map[string]any{"email": "a@x.com", "password": "pw", "rememberMe": true},
			loginFunc: func(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error) {
				if email != "a@x.com" || password != "pw" || !rememberMe {
					t.Errorf("unexpected login args %q %q %v", email, password, rememberMe)
				}
				return sessionResult(service.SignInExisting), nil
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"name":"Ana","type":1,"email":"a@x.com","token":"jwt-token"}`, rec.Body.String())
			},
		},
		{
			name: "invalid credentials",
			body: map[string]any{"email": "a@x.com", "password": "bad"},
			loginFunc: func(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error) {
				return nil, apierrors.ErrInvalidCredentials
			},
			expectedStatus: http.StatusUnauthorized,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "invalid_credentials", decodeError(t, rec).Code)
			},
		},
		{
			name:           "missing password",
			body:           map[string]any{"email": "a@x.com"},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decodeError(t, rec)
				assert.Equal(t, "validation_error", body.Code)
				assert.Equal(t, map[string]any{"password": "password is required"}, body.Details)
			},
		},
		{
			name:           "malformed body",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "bad_request", decodeError(t, rec).Code)
			},
		},
		{
			name: "store failure is not leaked",
			body: map[string]any{"email": "a@x.com", "password": "pw"},
			loginFunc: func(ctx context.Context, email, password string, rememberMe bool) (*service.SessionResult, error) {
				return nil, errors.New("select user: dial tcp 10.0.0.5:5432: connection refused")
			},
			expectedStatus: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.NotContains(t, rec.Body.String(), "10.0.0.5")
				assert.Equal(t, "internal_error", decodeError(t, rec).Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(handlerDeps{auth: &mockAuthService{loginFunc: tt.loginFunc}})

			rec := doRequest(t, h, http.MethodPost, "/login", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, rec)
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var revoked string
	h := newTestHandler(handlerDeps{auth: &mockAuthService{
		logoutFunc: func(ctx context.Context, token string) error {
			revoked = token
			return nil
		},
	}})

	rec := doRequest(t, h, http.MethodPost, "/logout", map[string]string{"session_token": "tok"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())
	assert.Equal(t, "tok", revoked)

	rec = doRequest(t, h, http.MethodPost, "/logout", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_GoogleSignIn(t *testing.T) {
	tests := []struct {
		name           string
		path           service.SignInPath
		err            error
		expectedStatus int
	}{
		{"existing user", service.SignInExisting, nil, http.StatusOK},
		{"linked user", service.SignInLinked, nil, http.StatusOK},
		{"created user", service.SignInCreated, nil, http.StatusCreated},
		{"invalid google token", "", apierrors.ErrInvalidExternalToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(handlerDeps{google: &mockGoogleService{
				signInFunc: func(ctx context.Context, idToken string) (*service.SessionResult, error) {
					assert.Equal(t, "google-id-token", idToken)
					if tt.err != nil {
						return nil, tt.err
					}
					return sessionResult(tt.path), nil
				},
			}})

			rec := doRequest(t, h, http.MethodPost, "/auth/google", map[string]string{"idToken": "google-id-token"})

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.err == nil {
				var body SessionResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "jwt-token", body.Token)
				assert.Equal(t, 1, body.Type)
			}
		})
	}
}

func TestAuthHandler_GoogleSignIn_MissingToken(t *testing.T) {
	h := newTestHandler(handlerDeps{})

	rec := doRequest(t, h, http.MethodPost, "/auth/google", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_CheckEmail(t *testing.T) {
	h := newTestHandler(handlerDeps{auth: &mockAuthService{
		emailExistsFunc: func(ctx context.Context, email string) (bool, error) {
			if email == "" {
				return false, apierrors.NewValidationError("email", "email is required")
			}
			return email == "taken@x.com", nil
		},
	}})

	rec := doRequest(t, h, http.MethodGet, "/checkEmail?email=taken@x.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/checkEmail?email=free@x.com", nil)
	assert.JSONEq(t, `{"exists":false}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/checkEmail", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_SendVerificationCode(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		err            error
		expectedStatus int
	}{
		{"sent", map[string]string{"email": "u@x.com"}, nil, http.StatusOK},
		{"delivery failure", map[string]string{"email": "u@x.com"}, apierrors.ErrDelivery, http.StatusInternalServerError},
		{"missing email", map[string]string{}, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(handlerDeps{verification: &mockVerificationService{
				requestCodeFunc: func(ctx context.Context, email string) error { return tt.err },
			}})

			rec := doRequest(t, h, http.MethodPost, "/sendVerificationCode", tt.body)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestAuthHandler_VerifyCode(t *testing.T) {
	h := newTestHandler(handlerDeps{verification: &mockVerificationService{
		checkCodeFunc: func(ctx context.Context, email, code string) (bool, error) {
			return email == "u@x.com" && code == "123456", nil
		},
	}})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"string code", `{"email":"u@x.com","code":"123456"}`, `{"isValid":true}`},
		{"numeric code", `{"email":"u@x.com","code":123456}`, `{"isValid":true}`},
		{"wrong code", `{"email":"u@x.com","code":"654321"}`, `{"isValid":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/verifyCode", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}

	rec := doRequest(t, h, http.MethodPost, "/verifyCode", `{"email":"u@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Register(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		body           any
		registerFunc   func(ctx context.Context, name, email, password string) (uuid.UUID, error)
		expectedStatus int
		checkResponse  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name: "registers user",
			body: map[string]string{"name": "Ana", "email": "a@x.com", "password": "pw"},
			registerFunc: func(ctx context.Context, name, email, password string) (uuid.UUID, error) {
				return userID, nil
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"success":true,"userId":"`+userID.String()+`"}`, rec.Body.String())
			},
		},
		{
			name: "accepts legacy nombre field",
			body: map[string]string{"nombre": "Ana", "email": "a@x.com", "password": "pw"},
			registerFunc: func(ctx context.Context, name, email, password string) (uuid.UUID, error) {
				if name != "Ana" {
					t.Errorf("name = %q, want Ana", name)
				}
				return userID, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "duplicate email is a 400",
			body: map[string]string{"name": "Ana", "email": "a@x.com", "password": "pw"},
			registerFunc: func(ctx context.Context, name, email, password string) (uuid.UUID, error) {
				return uuid.Nil, apierrors.ErrConflict
			},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "conflict", decodeError(t, rec).Code)
			},
		},
		{
			name:           "missing fields",
			body:           map[string]string{"email": "a@x.com"},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decodeError(t, rec)
				assert.Equal(t, "validation_error", body.Code)
				assert.Equal(t, map[string]any{
					"name":     "name is required",
					"password": "password is required",
				}, body.Details)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(handlerDeps{verification: &mockVerificationService{registerFunc: tt.registerFunc}})

			rec := doRequest(t, h, http.MethodPost, "/register", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, rec)
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	userID := uuid.New()
	avatar := "https://img/a.png"

	h := newTestHandler(handlerDeps{
		tokens: &mockTokenService{verifyFunc: func(ctx context.Context, token string) (uuid.UUID, error) {
			switch token {
			case "good":
				return userID, nil
			case "old":
				return uuid.Nil, apierrors.ErrSessionExpired
			case "broken":
				return uuid.Nil, errors.New("select session token: dial tcp 10.0.0.5:5432: connection refused")
			}
			return uuid.Nil, apierrors.ErrUnauthorized
		}},
		auth: &mockAuthService{getUserFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return &models.User{
				ID: id, Name: "Ana", Email: "a@x.com", AccountType: 1,
				EmailVerified: true, ProfilePictureURL: &avatar,
			}, nil
		}},
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"valid session", "Bearer good", http.StatusOK},
		{"expired session", "Bearer old", http.StatusUnauthorized},
		{"no session", "", http.StatusUnauthorized},
		{"session store failure", "Bearer broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
			if tt.expectedStatus == http.StatusOK {
				assert.JSONEq(t, `{"id":"`+userID.String()+`","name":"Ana","email":"a@x.com","type":1,"emailVerified":true,"avatarUrl":"https://img/a.png"}`, rec.Body.String())
			}
		})
	}
}
