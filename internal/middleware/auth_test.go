package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, claims TokenClaims) string {
	t.Helper()
	token, err := SignJWT(testSecret, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return token
}

func TestAuthOptionalAnonymousPassesThrough(t *testing.T) {
	var userID string
	handler := AuthOptional(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for anonymous request", rec.Code)
	}
	if userID != "" {
		t.Fatalf("user id = %q, want empty", userID)
	}
}

func TestAuthOptionalValidToken(t *testing.T) {
	token := signedToken(t, TokenClaims{
		Sub:    "user-42",
		Plan:   "studio",
		Locale: "fr",
		Exp:    time.Now().Add(time.Hour).Unix(),
	})

	var userID, locale string
	handler := AuthOptional(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		locale = LocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if userID != "user-42" {
		t.Fatalf("user id = %q, want user-42", userID)
	}
	if locale != "fr" {
		t.Fatalf("locale = %q, want fr (from claims)", locale)
	}
}

func TestAuthOptionalRejectsBadToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "malformed header", header: "Token abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{
			name: "wrong signature",
			header: func() string {
				token, _ := SignJWT("other-secret", TokenClaims{Sub: "user-1"})
				return "Bearer " + token
			}(),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthOptional(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler reached with invalid credentials")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestVerifyJWTExpired(t *testing.T) {
	token := signedToken(t, TokenClaims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()})
	if _, err := VerifyJWT(testSecret, token); err == nil {
		t.Fatal("expired token accepted")
	}
}
