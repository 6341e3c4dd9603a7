// Package blob uploads image binaries to the remote blob-storage service and
// hands back durable URLs.
package blob

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudinary/cloudinary-go"
	"github.com/cloudinary/cloudinary-go/api/uploader"
	"go.uber.org/zap"
)

// Store uploads one local file and returns its durable URL. Uploads are
// all-or-nothing per file; there are no partial-upload semantics.
type Store interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// CloudinaryStore is the Cloudinary-backed Store. It is constructed
// explicitly and injected into the engine; there is no package-level
// configuration.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore builds a store from account credentials. folder may be
// empty to upload into the account root.
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("missing Cloudinary configuration")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	resp, err := s.cld.Upload.Upload(ctx, f, uploader.UploadParams{Folder: s.folder})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}
	// The SDK can report API-level failures through the response body rather
	// than the error return.
	if resp.SecureURL == "" {
		return "", fmt.Errorf("upload %s: no secure URL in response", localPath)
	}
	zap.L().Info("image uploaded",
		zap.String("path", localPath),
		zap.String("url", resp.SecureURL),
	)
	return resp.SecureURL, nil
}
