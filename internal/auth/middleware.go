package auth

import (
	"net/http"

	"zproposal/internal/logging"
)

// RequireSession rejects requests with 401 unless the session is authenticated.
// Public endpoints pass through.
func RequireSession(session *Session, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) || session.IsAuthenticated(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			logger.WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Debug("unauthenticated request rejected")
			http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
		})
	}
}

// isPublicEndpoint checks if a path doesn't require authentication
func isPublicEndpoint(path string) bool {
	switch path {
	case "/api/login", "/healthz":
		return true
	}
	return false
}
