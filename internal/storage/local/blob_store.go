// Package local implements a filesystem news.BlobSink for development.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

// sidecarSuffix names the JSON file holding an object's attributes.
const sidecarSuffix = ".attrs.json"

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir"`
	// PublicOrigin, when set, is prefixed to keys instead of a file:// URL.
	PublicOrigin string `mapstructure:"public_origin"`
}

// Attributes are the object properties written next to each blob.
type Attributes struct {
	ContentType  string            `json:"content_type"`
	CacheControl string            `json:"cache_control"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// BlobStore writes image objects to the local filesystem.
type BlobStore struct {
	baseDir string
	origin  string
}

var _ news.BlobSink = (*BlobStore)(nil)

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("base directory is required")
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
		return nil, errors.New("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{
		baseDir: cfg.BaseDir,
		origin:  strings.TrimRight(strings.TrimSpace(cfg.PublicOrigin), "/"),
	}, nil
}

// Put writes the blob and its attributes sidecar.
func (s *BlobStore) Put(_ context.Context, blob news.Blob) error {
	fullPath, err := s.pathFor(blob.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, blob.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	attrs, err := json.Marshal(Attributes{
		ContentType:  blob.ContentType,
		CacheControl: blob.CacheControl,
		Metadata:     blob.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if err := os.WriteFile(fullPath+sidecarSuffix, attrs, 0o600); err != nil {
		return fmt.Errorf("failed to write attributes: %w", err)
	}
	return nil
}

// PublicURL returns the origin-prefixed URL, or a file:// URL without an origin.
func (s *BlobStore) PublicURL(key string) string {
	if s.origin != "" {
		return s.origin + "/" + strings.TrimLeft(key, "/")
	}
	return "file://" + filepath.Join(s.baseDir, key)
}

// ReadAttributes loads the sidecar written by Put.
func (s *BlobStore) ReadAttributes(key string) (Attributes, error) {
	fullPath, err := s.pathFor(key)
	if err != nil {
		return Attributes{}, err
	}
	// #nosec G304 -- path is confined to baseDir by pathFor.
	raw, err := os.ReadFile(fullPath + sidecarSuffix)
	if err != nil {
		return Attributes{}, fmt.Errorf("failed to read attributes: %w", err)
	}
	var attrs Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return Attributes{}, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return attrs, nil
}

// pathFor joins key under baseDir and rejects traversal outside it.
func (s *BlobStore) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("path is required")
	}
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(filepath.Join(s.baseDir, key))
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", errors.New("path traversal detected")
	}
	return cleanFullPath, nil
}
