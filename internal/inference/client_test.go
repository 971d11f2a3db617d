package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
)

// Minimal valid PNG header keeps http.DetectContentType happy.
var pngBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func validInput(name string) Input {
	return Input{Name: name, MIME: "image/png", Data: pngBytes}
}

func backend(t *testing.T, calls *int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.URL.Path != "/tryon/generate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload generateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.HasPrefix(payload.Input.GarmentImage, "data:image/png;base64,") {
			t.Fatalf("garment image not inlined: %q", payload.Input.GarmentImage)
		}
		if !strings.HasPrefix(payload.Input.PersonImage, "data:image/png;base64,") {
			t.Fatalf("person image not inlined: %q", payload.Input.PersonImage)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestGenerateResolvesURLObject(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":{"url":"https://cdn.example.com/out.png"},"model":"tryon-hd"}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL, Model: "tryon-hd"})
	out, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out.ResolvedURL != "https://cdn.example.com/out.png" {
		t.Fatalf("resolved url = %q", out.ResolvedURL)
	}
	if out.LowQuality {
		t.Fatal("quality flag should be false when preferred model served")
	}
	if calls != 1 {
		t.Fatalf("backend calls = %d, want 1", calls)
	}
}

func TestGenerateResolvesBareString(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":"https://cdn.example.com/direct.png"}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	out, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out.ResolvedURL != "https://cdn.example.com/direct.png" {
		t.Fatalf("resolved url = %q", out.ResolvedURL)
	}
}

func TestGenerateResolvesPathAgainstBase(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":{"path":"results/out.png"}}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	out, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out.ResolvedURL != ts.URL+"/results/out.png" {
		t.Fatalf("resolved url = %q, want %q", out.ResolvedURL, ts.URL+"/results/out.png")
	}
}

func TestGenerateNullOutputIsInferenceError(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":null,"model":"tryon-hd"}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	var inferr *domain.InferenceError
	if !errors.As(err, &inferr) {
		t.Fatalf("error = %v, want InferenceError", err)
	}
	if inferr.Reason != "model produced no output" {
		t.Fatalf("reason = %q", inferr.Reason)
	}
}

func TestGenerateUnknownShapeIsInferenceError(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":{"image_id":17}}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	var inferr *domain.InferenceError
	if !errors.As(err, &inferr) {
		t.Fatalf("error = %v, want InferenceError", err)
	}
	if inferr.Reason != "unrecognized response shape" {
		t.Fatalf("reason = %q", inferr.Reason)
	}
}

func TestGenerateFallbackModelSetsLowQuality(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "companion field", body: `{"output":"https://c/x.png","model":"tryon-hd","fallback_model":true}`},
		{name: "served variant", body: `{"output":"https://c/x.png","model":"tryon-lite"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			ts := backend(t, &calls, tc.body)
			defer ts.Close()

			client := NewClient(Options{BaseURL: ts.URL, Model: "tryon-hd", FallbackModel: "tryon-lite"})
			out, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if !out.LowQuality {
				t.Fatal("quality flag not propagated")
			}
		})
	}
}

func TestGenerateMissingInputSkipsNetwork(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":"https://c/x.png"}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), Input{Name: "garment"}, validInput("person"))
	if !errors.Is(err, domain.ErrMissingInput) {
		t.Fatalf("error = %v, want ErrMissingInput", err)
	}
	if calls != 0 {
		t.Fatalf("backend calls = %d, want 0", calls)
	}
}

func TestGenerateRejectsNonImagePayload(t *testing.T) {
	var calls int
	ts := backend(t, &calls, `{"output":"https://c/x.png"}`)
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	bad := Input{Name: "garment", Data: []byte("%PDF-1.4 not an image")}
	_, err := client.Generate(context.Background(), bad, validInput("person"))
	if !errors.Is(err, domain.ErrMissingInput) {
		t.Fatalf("error = %v, want ErrMissingInput", err)
	}
	if calls != 0 {
		t.Fatalf("backend calls = %d, want 0", calls)
	}
}

func TestGenerateTimeoutIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	var transport *domain.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("error = %v, want TransportError", err)
	}
}

func TestGenerateBackendErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"InvalidInput","message":"garment could not be segmented"}`))
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), validInput("garment"), validInput("person"))
	var inferr *domain.InferenceError
	if !errors.As(err, &inferr) {
		t.Fatalf("error = %v, want InferenceError", err)
	}
	if !strings.Contains(inferr.Reason, "segmented") {
		t.Fatalf("reason = %q", inferr.Reason)
	}
}
