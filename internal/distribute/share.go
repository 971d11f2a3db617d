package distribute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrShareCanceled marks a user-initiated cancellation. It is not a
	// failure and must never be reported as one.
	ErrShareCanceled = errors.New("share canceled by user")

	// ErrShareUnavailable means no share target is currently capable; the
	// caller should tell the user to download and share manually.
	ErrShareUnavailable = errors.New("no share target available")
)

// Sharer is one way of handing a result to the outside world. Availability
// is probed at call time, never assumed from a static flag, because target
// capability differs per deployment and can change while the process runs.
type Sharer interface {
	Name() string
	Available(ctx context.Context) bool
	Share(ctx context.Context, att Attachment) error
}

// Chain evaluates sharers as mutually exclusive fallbacks in priority order:
// the first available target is invoked and its verdict is final.
type Chain struct {
	sharers []Sharer
	logger  zerolog.Logger
}

func NewChain(logger zerolog.Logger, sharers ...Sharer) *Chain {
	return &Chain{sharers: sharers, logger: logger}
}

// Share returns the name of the target that handled the attachment. A
// canceled share propagates ErrShareCanceled; a real failure propagates the
// target's error. When nothing is capable, ErrShareUnavailable tells the
// caller to degrade to manual download.
func (c *Chain) Share(ctx context.Context, att Attachment) (string, error) {
	for _, sharer := range c.sharers {
		if !sharer.Available(ctx) {
			continue
		}
		err := sharer.Share(ctx, att)
		if err == nil {
			return sharer.Name(), nil
		}
		if errors.Is(err, ErrShareCanceled) {
			c.logger.Debug().Str("target", sharer.Name()).Msg("share canceled by user")
			return sharer.Name(), ErrShareCanceled
		}
		return sharer.Name(), fmt.Errorf("share via %s: %w", sharer.Name(), err)
	}
	return "", ErrShareUnavailable
}

// RelaySharer posts the attachment to a share relay endpoint (the native
// share sheet integration on the storefront side).
type RelaySharer struct {
	RelayURL   string
	HTTPClient *http.Client
}

func (s *RelaySharer) Name() string { return "relay" }

// Available probes the relay with a cheap HEAD request at call time.
func (s *RelaySharer) Available(ctx context.Context) bool {
	if s == nil || strings.TrimSpace(s.RelayURL) == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.RelayURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (s *RelaySharer) Share(ctx context.Context, att Attachment) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", att.Filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(att.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.RelayURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusConflict:
		// The relay reports 409 when the user dismissed the share sheet.
		return ErrShareCanceled
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("relay returned http %d", resp.StatusCode)
	}
	return nil
}

func (s *RelaySharer) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

var _ Sharer = (*RelaySharer)(nil)
