package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	cldconfig "github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/google/uuid"
)

// CloudinaryStore uploads blobs to Cloudinary.
type CloudinaryStore struct {
	uploader *uploader.API
	folder   string
}

// NewCloudinaryStore builds a store from account credentials.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cfg, err := cldconfig.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &CloudinaryStore{uploader: up, folder: folder}, nil
}

// Store uploads data and returns its secure URL.
func (s *CloudinaryStore) Store(ctx context.Context, data []byte, originalName, contentType string) (string, error) {
	result, err := s.uploader.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     uuid.NewString(),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %q: %w", originalName, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload %q: %s", originalName, result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary upload returned no url")
	}
	return result.SecureURL, nil
}
