package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDHonorsWellFormedInboundID(t *testing.T) {
	inbound := uuid.NewString()
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", inbound)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != inbound {
		t.Fatalf("context id = %q, want inbound %q", seen, inbound)
	}
	if got := rec.Header().Get("X-Request-ID"); got != inbound {
		t.Fatalf("response header = %q, want %q", got, inbound)
	}
}

func TestRequestIDReplacesMalformedInboundID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid\nfake log line")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("replacement id %q is not a uuid", seen)
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatal("response header must carry the replacement id")
	}
}
