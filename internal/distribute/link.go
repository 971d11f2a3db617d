package distribute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LinkSharer stages the attachment in a locally served share directory so the
// storefront can copy a link to the clipboard. This is the middle fallback
// between the native relay and asking the user to download manually.
type LinkSharer struct {
	BaseDir string
	BaseURL string
}

func (s *LinkSharer) Name() string { return "link" }

// Available probes that the share directory is writable right now.
func (s *LinkSharer) Available(ctx context.Context) bool {
	if s == nil || strings.TrimSpace(s.BaseDir) == "" || strings.TrimSpace(s.BaseURL) == "" {
		return false
	}
	if err := ctx.Err(); err != nil {
		return false
	}
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return false
	}
	probe, err := os.CreateTemp(s.BaseDir, ".probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}

func (s *LinkSharer) Share(ctx context.Context, att Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(att.Filename)
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid share filename %q", att.Filename)
	}
	path := filepath.Join(s.BaseDir, name)
	if err := os.WriteFile(path, att.Data, 0o644); err != nil {
		return fmt.Errorf("stage share file: %w", err)
	}
	return nil
}

// Link returns the public URL for a previously shared attachment.
func (s *LinkSharer) Link(att Attachment) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + filepath.Base(att.Filename)
}

var _ Sharer = (*LinkSharer)(nil)
