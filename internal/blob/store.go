// Package blob stores message attachments and group photos. The returned URL is opaque to callers.
package blob

import (
	"context"
	"fmt"

	"collab-service/internal/config"
)

// Store persists a blob and returns the URL it can be fetched from.
type Store interface {
	Store(ctx context.Context, data []byte, originalName, contentType string) (string, error)
}

// Upload is a file received from a caller, not yet stored.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the upload size in bytes.
func (u *Upload) Size() int64 { return int64(len(u.Data)) }

// New builds the store selected by cfg.Provider.
func New(cfg config.BlobConfig) (Store, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicPath)
	case "cloudinary":
		c := cfg.Cloudinary
		return NewCloudinaryStore(c.CloudName, c.APIKey, c.APISecret, c.Folder)
	default:
		return nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
	}
}
