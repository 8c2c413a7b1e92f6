// Package handler provides HTTP handlers for the auth API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Aaron408/vercel-authservice/internal/middleware"
	"github.com/Aaron408/vercel-authservice/internal/models"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/response"
	"github.com/Aaron408/vercel-authservice/internal/service"
)

// AuthHandler handles login, Google sign-in, verification and registration requests.
type AuthHandler struct {
	authService         service.AuthService
	googleService       service.GoogleAuthService
	verificationService service.VerificationService
	tokenService        service.TokenService
	validate            *validator.Validate
	logger              *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	authService service.AuthService,
	googleService service.GoogleAuthService,
	verificationService service.VerificationService,
	tokenService service.TokenService,
	logger *slog.Logger,
) *AuthHandler {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &AuthHandler{
		authService:         authService,
		googleService:       googleService,
		verificationService: verificationService,
		tokenService:        tokenService,
		validate:            v,
		logger:              logger,
	}
}

// Routes returns a chi router with the auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/auth/google", h.GoogleSignIn)

	r.Get("/checkEmail", h.CheckEmail)
	r.Post("/sendVerificationCode", h.SendVerificationCode)
	r.Post("/verifyCode", h.VerifyCode)
	r.Post("/register", h.Register)

	r.With(middleware.RequireSession(h.tokenService.Verify, h.logger)).Get("/me", h.Me)

	return r
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// SessionResponse is returned by both sign-in endpoints.
type SessionResponse struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func toSessionResponse(res *service.SessionResult) SessionResponse {
	return SessionResponse{
		Name:  res.User.Name,
		Type:  res.User.AccountType,
		Email: res.User.Email,
		Token: res.Token,
	}
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		middleware.RecordLogin("password", resultLabel(err))
		h.writeError(w, r, err)
		return
	}

	middleware.RecordLogin("password", "success")
	response.OK(w, toSessionResponse(res))
}

// LogoutRequest is the body of POST /logout.
type LogoutRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.authService.Logout(r.Context(), req.SessionToken); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]string{"message": "Logged out successfully"})
}

// GoogleSignInRequest is the body of POST /auth/google.
type GoogleSignInRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// GoogleSignIn handles POST /auth/google
func (h *AuthHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.googleService.SignIn(r.Context(), req.IDToken)
	if err != nil {
		middleware.RecordLogin("google", resultLabel(err))
		h.writeError(w, r, err)
		return
	}

	middleware.RecordLogin("google", string(res.Path))
	if res.Path == service.SignInCreated {
		response.Created(w, toSessionResponse(res))
		return
	}
	response.OK(w, toSessionResponse(res))
}

// CheckEmail handles GET /checkEmail?email=
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	exists, err := h.authService.EmailExists(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]bool{"exists": exists})
}

// SendVerificationCodeRequest is the body of POST /sendVerificationCode.
type SendVerificationCodeRequest struct {
	Email string `json:"email" validate:"required"`
}

// SendVerificationCode handles POST /sendVerificationCode
func (h *AuthHandler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req SendVerificationCodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.verificationService.RequestCode(r.Context(), req.Email); err != nil {
		middleware.RecordVerificationCode(resultLabel(err))
		h.writeError(w, r, err)
		return
	}

	middleware.RecordVerificationCode("sent")
	response.OK(w, map[string]string{"message": "Verification code sent"})
}

// VerifyCodeRequest is the body of POST /verifyCode.
type VerifyCodeRequest struct {
	Email string    `json:"email" validate:"required"`
	Code  codeValue `json:"code" validate:"required"`
}

// codeValue accepts a code sent either as a JSON string or a JSON number.
type codeValue string

func (c *codeValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = codeValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = codeValue(n.String())
	return nil
}

// VerifyCode handles POST /verifyCode
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ok, err := h.verificationService.CheckCode(r.Context(), req.Email, string(req.Code))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, map[string]bool{"isValid": ok})
}

// RegisterRequest is the body of POST /register. Older clients send the
// display name as "nombre".
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Nombre   string `json:"nombre,omitempty" validate:"-"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse is returned by POST /register.
type RegisterResponse struct {
	Success bool      `json:"success"`
	UserID  uuid.UUID `json:"userId"`
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = req.Nombre
	}
	if !h.validateStruct(w, &req) {
		return
	}

	id, err := h.verificationService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	middleware.RecordRegistration()
	response.Created(w, RegisterResponse{Success: true, UserID: id})
}

// UserResponse is the public view of the signed-in user.
type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Type          int       `json:"type"`
	EmailVerified bool      `json:"emailVerified"`
	AvatarURL     *string   `json:"avatarUrl,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Type:          u.AccountType,
		EmailVerified: u.EmailVerified,
		AvatarURL:     u.ProfilePictureURL,
	}
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w)
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, toUserResponse(user))
}

func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	return h.validateStruct(w, dst)
}

func (h *AuthHandler) validateStruct(w http.ResponseWriter, dst any) bool {
	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(w, apierrors.ErrBadRequest.Message)
		return false
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Field() + " is required"
	}
	response.ValidationErrors(w, fields)
	return false
}

// writeError logs failures that render as 5xx, then writes the response.
// The client only ever sees the generic message for those.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr := apierrors.AsAPIError(err); apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	response.Error(w, err)
}

// resultLabel maps an error onto a bounded metrics label.
func resultLabel(err error) string {
	return apierrors.AsAPIError(err).Code
}
