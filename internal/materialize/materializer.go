package materialize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"server/internal/domain"
)

// Options configure the materializer.
type Options struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

const defaultMaxBytes = 32 << 20

// Materializer converts the backend's short-lived result URL into a durable,
// self-contained data URI. The backend's URLs are observed to expire, and the
// product promise "we don't store your images, but you can download and share
// before leaving" only holds if the bytes are pulled into a representation
// that outlives the URL's TTL.
type Materializer struct {
	httpClient *http.Client
	maxBytes   int64
}

func New(opts Options) *Materializer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Materializer{httpClient: client, maxBytes: maxBytes}
}

// Materialize fetches the resolved URL once and re-encodes the full body as a
// data URI. Non-2xx responses surface as DownstreamError with the status
// attached; a placeholder is never substituted.
func (m *Materializer) Materialize(ctx context.Context, resolvedURL string) (string, error) {
	if m == nil {
		return "", errors.New("materializer not configured")
	}
	resolvedURL = strings.TrimSpace(resolvedURL)
	if resolvedURL == "" {
		return "", errors.New("materialize: resolved url required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolvedURL, nil)
	if err != nil {
		return "", fmt.Errorf("materialize: build request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		// Generation already succeeded; a dead result URL is a fetch
		// problem, not an inference-backend one.
		return "", &domain.DownstreamError{URL: resolvedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &domain.DownstreamError{Status: resp.StatusCode, URL: resolvedURL}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return "", &domain.DownstreamError{URL: resolvedURL, Err: fmt.Errorf("read result body: %w", err)}
	}
	if int64(len(data)) > m.maxBytes {
		return "", fmt.Errorf("materialize: result exceeds %d bytes", m.maxBytes)
	}
	if len(data) == 0 {
		return "", &domain.DownstreamError{Status: resp.StatusCode, URL: resolvedURL}
	}

	return DataURI(data), nil
}

// DataURI encodes raw image bytes as a self-contained data URI. The MIME type
// is sniffed from the bytes, not trusted from headers.
func DataURI(data []byte) string {
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI is the inverse of DataURI; distribution uses it to rebuild
// binary attachments without any network round trip.
func DecodeDataURI(uri string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, errors.New("not a data uri")
	}
	rest := strings.TrimPrefix(uri, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, errors.New("malformed data uri")
	}
	meta, payload := rest[:sep], rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, errors.New("data uri is not base64 encoded")
	}
	mime = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri: %w", err)
	}
	return mime, data, nil
}
