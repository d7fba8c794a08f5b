package middleware

import (
	"app/internal/logger"
	"app/internal/util"
	"context"
	"net/http"
	"strings"
)

// Injected key type to avoid context collisions
type contextKey string

const UserContextKey = contextKey("user")

// PrincipalFromContext returns the authenticated user id, or "" when the
// request is anonymous. The principal is resolved once at the boundary;
// handlers and services never re-derive it.
func PrincipalFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserContextKey).(string)
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware requires a valid Bearer JWT and embeds the principal id in
// the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.New()
			tokenString, ok := bearerToken(r)
			if !ok {
				log.Error().Msg("Authorization header missing or malformed")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(tokenString, jwtSecret)
			if err != nil {
				log.Error().Msgf("Invalid token: %+v", err)
				http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware resolves the principal when a valid token is present
// but lets anonymous requests through. Endpoints like the usage check answer
// both audiences; an invalid token is treated as anonymous, never an error.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := util.ValidateJWT(tokenString, jwtSecret)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
