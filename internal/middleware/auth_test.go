package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/util"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := util.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func principalEcho() (http.Handler, *string) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &got
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	next, principal := principalEcho()
	h := AuthMiddleware(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *principal != "user-1" {
		t.Fatalf("expected principal user-1, got %q", *principal)
	}
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	next, _ := principalEcho()
	h := AuthMiddleware(testSecret)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without Authorization header, got %d", rec.Code)
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	next, _ := principalEcho()
	h := AuthMiddleware(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Now().Add(-time.Hour)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	next, _ := principalEcho()
	h := AuthMiddleware("other-secret")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token signed with another secret, got %d", rec.Code)
	}
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	next, principal := principalEcho()
	h := OptionalAuthMiddleware(testSecret)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request must pass through, got %d", rec.Code)
	}
	if *principal != "" {
		t.Fatalf("anonymous request must have no principal, got %q", *principal)
	}
}

func TestOptionalAuthTreatsInvalidTokenAsAnonymous(t *testing.T) {
	next, principal := principalEcho()
	h := OptionalAuthMiddleware(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("invalid token must degrade to anonymous, got %d", rec.Code)
	}
	if *principal != "" {
		t.Fatalf("invalid token must not set a principal, got %q", *principal)
	}
}

func TestOptionalAuthResolvesValidToken(t *testing.T) {
	next, principal := principalEcho()
	h := OptionalAuthMiddleware(testSecret)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-7", time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *principal != "user-7" {
		t.Fatalf("expected principal user-7, got %q", *principal)
	}
}
