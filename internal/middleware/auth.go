package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Auth gates the gateway behind a static API key or a signed JWT bearer
// token. It is only spliced into the pipeline when the operator's ambient
// config supplies at least one credential (config.AuthConfig.Enabled) — the
// core CLI has no auth flags of its own.
type Auth struct {
	keys   map[string]bool
	secret []byte
}

// NewAuth builds an Auth middleware accepting any of apiKeys verbatim, or a
// JWT signed with jwtSecret.
func NewAuth(apiKeys []string, jwtSecret string) *Auth {
	keys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		keys[k] = true
	}
	return &Auth{keys: keys, secret: []byte(jwtSecret)}
}

// Middleware rejects, with 401, any request that carries neither a
// recognized X-API-Key nor a valid "Authorization: Bearer <jwt>" header. A
// request that sends an X-API-Key is judged on that key alone: an
// unrecognized key is rejected even if a valid bearer token is also present.
func (a *Auth) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				if !a.keys[apiKey] {
					http.Error(w, "Invalid API Key", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !a.bearerIsValid(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerIsValid reports whether r's Authorization header carries a
// well-formed, signature-valid JWT for this Auth's secret.
func (a *Auth) bearerIsValid(r *http.Request) bool {
	raw := r.Header.Get("Authorization")
	tokenString, hasPrefix := strings.CutPrefix(raw, "Bearer ")
	if !hasPrefix || tokenString == "" {
		return false
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	return err == nil && token.Valid
}
