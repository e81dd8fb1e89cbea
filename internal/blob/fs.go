// Package blob stores uploaded files on the local filesystem and serves
// them back under a public URL prefix.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey rejects keys that would escape the root directory.
var ErrInvalidKey = errors.New("blob: invalid key")

// FS writes objects beneath Root. Keys are slash-separated and map to
// files; the returned URL is BaseURL + "/" + key.
type FS struct {
	root    string
	baseURL string
	maxSize int64
}

// Option configures FS.
type Option func(*FS)

// WithMaxSize caps the size of a single object; 0 disables the cap.
func WithMaxSize(n int64) Option {
	return func(f *FS) { f.maxSize = n }
}

// NewFS creates root if needed.
func NewFS(root, baseURL string, opts ...Option) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	f := &FS{root: root, baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// Put writes r under key atomically and returns the object's URL.
func (f *FS) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if f.maxSize > 0 {
		src = io.LimitReader(r, f.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	if f.maxSize > 0 && n > f.maxSize {
		return "", fmt.Errorf("blob: object exceeds %d bytes", f.maxSize)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("blob: commit: %w", err)
	}
	return f.URL(key), nil
}

// URL is the public address of key.
func (f *FS) URL(key string) string {
	return f.baseURL + "/" + key
}

// Open returns the object for key.
func (f *FS) Open(key string) (*os.File, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(f.root, filepath.FromSlash(key)))
}

// Handler serves stored objects. Mount it with http.StripPrefix so the
// request path is the key. Directory listings are refused.
func (f *FS) Handler() http.Handler {
	files := http.FileServer(http.Dir(f.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/")
		if _, err := cleanKey(key); err != nil || strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(path.Base(key), ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
