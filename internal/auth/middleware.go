package auth

import (
	"net/http"
	"strings"

	"github.com/cranefleet/cranefleet/internal/platform/httpx"
	"github.com/cranefleet/cranefleet/internal/shared"
)

// open paths bypass bearer authentication.
var open = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/healthz":           true,
	"/metrics":           true,
}

// Middleware parses the Authorization bearer token and attaches the actor
// to the request context. Requests without a valid token get 401.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			actor, err := service.Verify(token)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}
