package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

// Input is one of the two source images for a job. The bytes are owned by the
// in-flight job and are not retained by the client after submission.
type Input struct {
	Name string
	MIME string
	Data []byte
}

// Validate fails fast before any network call is made.
func (in Input) Validate() error {
	if len(in.Data) == 0 {
		return domain.ErrMissingInput
	}
	mime := in.MIME
	if mime == "" {
		mime = http.DetectContentType(in.Data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%w: %s is not an image payload", domain.ErrMissingInput, in.Name)
	}
	return nil
}

// Outcome is the canonical result of one generation call. ResolvedURL is
// always absolute; LowQuality signals that the fallback model served the
// request and must be propagated, never dropped.
type Outcome struct {
	ResolvedURL   string
	ComparisonURL string
	LowQuality    bool
}

// Options configure the try-on inference client.
type Options struct {
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	HTTPClient    *http.Client
	Timeout       time.Duration
}

// Client drives the external try-on model. A single call covers the whole
// job: there is no server push of intermediate state, the caller only learns
// done-or-error when the long poll returns.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	model         string
	fallbackModel string
	timeout       time.Duration
}

// NewClient builds an explicit client instance; nothing here is process-wide,
// so tests substitute a stub server by pointing BaseURL at it.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.tryon.example.com/v1"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Minute
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "tryon-hd"
	}
	return &Client{
		httpClient:    client,
		baseURL:       base,
		token:         strings.TrimSpace(opts.APIKey),
		model:         model,
		fallbackModel: strings.TrimSpace(opts.FallbackModel),
		timeout:       timeout,
	}
}

type generateRequest struct {
	Model string `json:"model"`
	Input struct {
		GarmentImage string `json:"garment_image"`
		PersonImage  string `json:"person_image"`
	} `json:"input"`
}

type generateResponse struct {
	Output        json.RawMessage `json:"output"`
	ComparisonURL string          `json:"comparison_url"`
	Model         string          `json:"model"`
	FallbackModel bool            `json:"fallback_model"`
	Code          string          `json:"code"`
	Message       string          `json:"message"`
}

// Generate submits both images as one job and awaits the terminal response.
// The call is bounded by the configured timeout; on timeout the job is
// classified as a transport failure. The response payload is parsed
// defensively because the output field is not a stable contract.
func (c *Client) Generate(ctx context.Context, garment, person Input) (*Outcome, error) {
	if c == nil {
		return nil, errors.New("inference client not configured")
	}
	if err := garment.Validate(); err != nil {
		return nil, err
	}
	if err := person.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload generateRequest
	payload.Model = c.model
	payload.Input.GarmentImage = inlineImage(garment)
	payload.Input.PersonImage = inlineImage(person)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.baseURL + "/tryon/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &domain.TransportError{Err: fmt.Errorf("http %d", resp.StatusCode)}
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.InferenceError{Reason: fmt.Sprintf("http %d", resp.StatusCode)}
		}
		return nil, &domain.InferenceError{Reason: "undecodable response body"}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &domain.TransportError{Err: fmt.Errorf("http %d: %s", resp.StatusCode, out.Message)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		reason := out.Message
		if reason == "" {
			reason = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, &domain.InferenceError{Reason: reason}
	}

	ref := classifyOutput(out.Output)
	switch ref.Kind {
	case OutputNull:
		return nil, &domain.InferenceError{Reason: "model produced no output"}
	case OutputString, OutputURLObject, OutputPathObject:
		resolved, err := c.resolveRef(ref.Ref)
		if err != nil {
			return nil, err
		}
		outcome := &Outcome{ResolvedURL: resolved, LowQuality: c.lowQuality(out)}
		// The comparison composite is optional; a malformed reference only
		// loses the comparison, never the primary result.
		if cmp := strings.TrimSpace(out.ComparisonURL); cmp != "" {
			if resolvedCmp, err := c.resolveRef(cmp); err == nil {
				outcome.ComparisonURL = resolvedCmp
			}
		}
		return outcome, nil
	default:
		return nil, &domain.InferenceError{Reason: "unrecognized response shape"}
	}
}

// lowQuality derives the degraded-result signal from two backend-specific
// hints: the explicit companion field, and the model variant that actually
// served the request.
func (c *Client) lowQuality(resp generateResponse) bool {
	if resp.FallbackModel {
		return true
	}
	served := strings.TrimSpace(resp.Model)
	if served == "" || served == c.model {
		return false
	}
	if c.fallbackModel != "" && strings.EqualFold(served, c.fallbackModel) {
		return true
	}
	// Any other variant is not the preferred model either.
	return true
}

// resolveRef turns the classified reference into an absolute URL. Bare paths
// are resolved against the backend base URL.
func (c *Client) resolveRef(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", &domain.InferenceError{Reason: "unparseable output reference"}
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", &domain.InferenceError{Reason: "unparseable base url"}
	}
	return base.ResolveReference(u).String(), nil
}

func inlineImage(in Input) string {
	mime := in.MIME
	if mime == "" {
		mime = http.DetectContentType(in.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.Data)
}
