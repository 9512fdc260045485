package httpx

import (
	"net/http"
	"strings"

	"readingnook/internal/platform/crypto"
)

// AuthMiddleware admits requests carrying a valid bearer token signed with
// secret and stores the token subject as the request user.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token", nil)
				return
			}

			claims, err := crypto.ParseToken(secret, token)
			if err != nil {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), claims.Sub)))
		})
	}
}
