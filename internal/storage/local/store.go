// Package local writes library artifacts to the filesystem atomically and
// refuses any path outside the library root.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned for targets outside the store root.
var ErrPathTraversal = errors.New("path traversal detected")

// PathValidator decides whether a path is inside the library.
type PathValidator interface {
	ValidatePath(p string) bool
}

// Suffixer yields unique tokens for temp-file names.
type Suffixer interface {
	MustSuffix() string
}

// Config captures the parameters for the store.
type Config struct {
	// BaseDir is the library root every write must stay under.
	BaseDir string
	// Validator overrides the prefix check, typically with a symlink-aware
	// paths.Manager.
	Validator PathValidator
	Suffixer  Suffixer
}

// Store writes artifacts beneath BaseDir.
type Store struct {
	baseDir   string
	validator PathValidator
	suffixer  Suffixer
}

// New creates a Store, creating BaseDir and verifying it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.Suffixer == nil {
		return nil, fmt.Errorf("suffixer is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{
		baseDir:   filepath.Clean(cfg.BaseDir),
		validator: cfg.Validator,
		suffixer:  cfg.Suffixer,
	}, nil
}

// WriteFile atomically replaces path with data.
func (s *Store) WriteFile(ctx context.Context, path string, data []byte) error {
	_, err := s.WriteStream(ctx, path, bytes.NewReader(data))
	return err
}

// WriteStream atomically replaces path with the contents of r and returns the
// number of bytes written. Readers never observe a partial file.
func (s *Store) WriteStream(ctx context.Context, path string, r io.Reader) (int64, error) {
	if err := s.check(path); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+s.suffixer.MustSuffix()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600) // #nosec G304 -- tmp is derived from a validated path.
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("rename into %s: %w", path, err)
	}
	return n, nil
}

// Promote moves a fully written scratch file into place.
func (s *Store) Promote(src, dst string) error {
	if err := s.check(src); err != nil {
		return err
	}
	if err := s.check(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// ReadFile reads a file inside the store.
func (s *Store) ReadFile(path string) ([]byte, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated above.
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path exists as a regular file.
func (s *Store) Exists(path string) bool {
	if s.check(path) != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes path, ignoring a missing file.
func (s *Store) Remove(path string) error {
	if err := s.check(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *Store) check(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	if s.validator != nil {
		if !s.validator.ValidatePath(path) {
			return fmt.Errorf("%w: %s", ErrPathTraversal, path)
		}
		return nil
	}
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(s.baseDir, clean)
	}
	if !strings.HasPrefix(clean, s.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
