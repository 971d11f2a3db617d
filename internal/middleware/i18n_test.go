package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "FR")
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "fr",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "en",
		},
		{
			name: "accept-language korean preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ko-KR,en;q=0.8")
			},
			want: "ko",
		},
		{
			name: "unsupported language degrades to english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "sw-KE")
			},
			want: "en",
		},
		{
			name: "invalid x-locale degrades to english",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "???")
			},
			want: "en",
		},
		{
			name:     "configured fallback",
			fallback: "ja",
			want:     "ja",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := detectLocale(req, tc.fallback); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NMiddlewareSetsContext(t *testing.T) {
	var got string
	handler := I18N("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "fr" {
		t.Fatalf("locale in context = %q, want %q", got, "fr")
	}
}
