package scratch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Store holds the two input images of an in-flight job on the local
// filesystem for the duration of one inference call. Handles are exclusively
// owned by their job, never shared or reused, and must be released on every
// exit path. Nothing here survives the job: that is the privacy contract.
type Store struct {
	basePath string
}

// NewStore initializes a Store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("scratch: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("scratch: ensure base path: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *Store) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes one input image under the job's scratch directory and returns
// its handle. Names are sanitized to prevent directory traversal.
func (s *Store) Put(ctx context.Context, jobID, name string, data []byte) (*Handle, error) {
	if s == nil {
		return nil, errors.New("scratch: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("scratch: empty payload")
	}
	cleanJob, err := sanitizeComponent(jobID)
	if err != nil {
		return nil, err
	}
	cleanName, err := sanitizeComponent(name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.basePath, cleanJob)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("scratch: ensure job directory: %w", err)
	}
	path := filepath.Join(dir, cleanName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("scratch: write input: %w", err)
	}
	return &Handle{path: path, size: int64(len(data))}, nil
}

// ReleaseJob removes the whole scratch directory for a job. Used as a
// backstop after individual handles are released.
func (s *Store) ReleaseJob(jobID string) error {
	if s == nil {
		return nil
	}
	cleanJob, err := sanitizeComponent(jobID)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.basePath, cleanJob))
}

// Handle is one job-scoped input image on disk.
type Handle struct {
	path     string
	size     int64
	released atomic.Bool
	once     sync.Once
}

// Path returns the on-disk location.
func (h *Handle) Path() string { return h.path }

// Size returns the stored payload size in bytes.
func (h *Handle) Size() int64 { return h.size }

// Bytes reads the stored payload back.
func (h *Handle) Bytes() ([]byte, error) {
	if h == nil {
		return nil, errors.New("scratch: nil handle")
	}
	if h.released.Load() {
		return nil, errors.New("scratch: handle already released")
	}
	return os.ReadFile(h.path)
}

// Release deletes the underlying file. It is idempotent: the delete runs at
// most once no matter how many exit paths call it.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	var err error
	h.once.Do(func() {
		h.released.Store(true)
		err = os.Remove(h.path)
	})
	return err
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h != nil && h.released.Load()
}

func sanitizeComponent(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("scratch: name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." ||
		strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("scratch: invalid name %q", name)
	}
	return cleaned, nil
}
