package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterEnforcesWindow(t *testing.T) {
	l := &limiter{limit: 2, per: time.Minute, windows: make(map[string]*window)}
	now := time.Now()

	for i := 0; i < 2; i++ {
		if _, ok := l.take("203.0.113.1", now); !ok {
			t.Fatalf("request %d refused below the limit", i+1)
		}
	}
	retry, ok := l.take("203.0.113.1", now)
	if ok {
		t.Fatal("request above the limit must be refused")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("retry = %v, want within the window", retry)
	}

	if _, ok := l.take("203.0.113.1", now.Add(time.Minute+time.Second)); !ok {
		t.Fatal("request after the window reset must be admitted")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := &limiter{limit: 1, per: time.Minute, windows: make(map[string]*window)}
	now := time.Now()

	if _, ok := l.take("203.0.113.1", now); !ok {
		t.Fatal("first address refused")
	}
	if _, ok := l.take("203.0.113.1", now); ok {
		t.Fatal("first address must be at its limit")
	}
	if _, ok := l.take("203.0.113.2", now); !ok {
		t.Fatal("second address must have its own window")
	}
}

func TestLimiterPrunesExpiredWindows(t *testing.T) {
	l := &limiter{limit: 1, per: time.Minute, windows: make(map[string]*window)}
	now := time.Now()

	l.take("203.0.113.1", now)
	l.take("203.0.113.2", now.Add(2*time.Minute))
	if _, ok := l.windows["203.0.113.1"]; ok {
		t.Fatal("expired window must be pruned when a fresh one is allocated")
	}
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/v1/tryon", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("throttled response must carry Retry-After")
	}
	if rec := do(http.MethodOptions); rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want uncounted 200", rec.Code)
	}
}

func TestRemoteHost(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{name: "host with port", remoteAddr: "198.51.100.10:1234", want: "198.51.100.10"},
		{name: "bare host", remoteAddr: "203.0.113.1", want: "203.0.113.1"},
		{name: "ipv6 with port", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if got := remoteHost(req); got != tc.want {
				t.Fatalf("remoteHost() = %q, want %q", got, tc.want)
			}
		})
	}
}
