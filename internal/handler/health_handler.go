package handler

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/response"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns a liveness check that succeeds while the process serves requests.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	}
}

// Ready returns a readiness check that pings every named dependency.
func Ready(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				response.Error(w, apierrors.ErrServiceUnavailable.WithDetails(map[string]string{
					"component": name,
				}))
				return
			}
			status[name] = "connected"
		}

		response.OK(w, status)
	}
}
