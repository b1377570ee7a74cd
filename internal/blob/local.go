package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes blobs into a directory served under PublicPath.
type LocalStore struct {
	dir        string
	publicPath string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, publicPath: publicPath}, nil
}

// Dir is the directory blobs are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Store writes data under a random name that keeps the original extension.
func (s *LocalStore) Store(ctx context.Context, data []byte, originalName, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + safeExt(originalName)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return path.Join(s.publicPath, name), nil
}

// safeExt returns the lowercased extension of name when it is short and alphanumeric.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
