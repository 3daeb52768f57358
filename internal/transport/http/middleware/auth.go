package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const CredentialsKey contextKey = "credentials"

// Credentials are the email and password sent with HTTP Basic auth.
type Credentials struct {
	Email    string
	Password string
}

// BasicAuth requires an Authorization: Basic header and injects the decoded
// credentials into context. Checking them against the stored hash is left to
// the use case.
func BasicAuth(realm string) func(http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `"`
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, password, ok := r.BasicAuth()
			if !ok || strings.TrimSpace(email) == "" || password == "" {
				w.Header().Set("WWW-Authenticate", challenge)
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			ctx := context.WithValue(r.Context(), CredentialsKey, Credentials{Email: email, Password: password})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CredentialsFromContext extracts Basic credentials from the request context.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(CredentialsKey).(Credentials)
	return c, ok
}
