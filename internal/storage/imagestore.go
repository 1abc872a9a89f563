package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEmptyImage indicates an upload with no bytes.
	ErrEmptyImage = errors.New("storage: image data required")
	// ErrUnsupportedImageType indicates a content type outside the accepted set.
	ErrUnsupportedImageType = errors.New("storage: unsupported image type")
)

// ImageStore is the boundary to the image-hosting collaborator. Transcoding
// and CDN concerns live behind it.
type ImageStore interface {
	Save(data []byte, contentType string) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FilesystemImageStore persists uploads under a local directory and serves
// them back by URL path.
type FilesystemImageStore struct {
	dir       string
	publicURL string
}

// NewFilesystemImageStore constructs a store rooted at dir. Uploaded files are
// addressed as publicURL/<name>.
func NewFilesystemImageStore(dir, publicURL string) (*FilesystemImageStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: upload directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload directory: %w", err)
	}
	return &FilesystemImageStore{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Save writes the image bytes under a fresh uuid name and returns its URL.
func (s *FilesystemImageStore) Save(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	extension, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImageType, contentType)
	}

	identifier, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	name := identifier.String() + extension
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write image: %w", err)
	}
	return s.publicURL + "/" + name, nil
}
