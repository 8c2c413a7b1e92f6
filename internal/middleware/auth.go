package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/response"
)

type contextKey string

// UserIDKey holds the authenticated user's id.
const UserIDKey contextKey = "user_id"

// SessionValidator resolves a bearer token to the user it is bound to.
type SessionValidator func(ctx context.Context, token string) (uuid.UUID, error)

// RequireSession rejects requests without a valid bearer session token.
// Expired sessions get their own error code so clients can prompt a new login.
// Failures that render as 5xx are logged with their cause; the client only
// sees the generic message.
func RequireSession(validate SessionValidator, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				response.Unauthorized(w)
				return
			}

			userID, err := validate(r.Context(), token)
			if err != nil {
				if apiErr := apierrors.AsAPIError(err); apiErr.StatusCode >= http.StatusInternalServerError {
					logger.ErrorContext(r.Context(), "session validation failed",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				response.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserIDFromContext returns the authenticated user id, or uuid.Nil.
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}
