// Package gcs provides a news.BlobSink backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const defaultPublicOrigin = "https://storage.googleapis.com"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// PublicOrigin is the CDN origin placed in front of the bucket. Empty
	// falls back to the public storage.googleapis.com URL of the bucket.
	PublicOrigin string
}

// BlobStore writes image objects to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	origin string
}

var _ news.BlobSink = (*BlobStore)(nil)

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	origin := strings.TrimRight(strings.TrimSpace(cfg.PublicOrigin), "/")
	if origin == "" {
		origin = defaultPublicOrigin + "/" + cfg.Bucket
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		origin: origin,
	}, nil
}

// Put uploads the blob with its content type, cache policy, and metadata.
func (s *BlobStore) Put(ctx context.Context, blob news.Blob) error {
	if strings.TrimSpace(blob.Key) == "" {
		return errors.New("object key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(blob.Key).NewWriter(ctx)
	writer.ContentType = blob.ContentType
	writer.CacheControl = blob.CacheControl
	if len(blob.Metadata) > 0 {
		writer.Metadata = make(map[string]string, len(blob.Metadata))
		for k, v := range blob.Metadata {
			writer.Metadata[k] = v
		}
	}
	if _, err := io.Copy(writer, bytes.NewReader(blob.Data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// PublicURL maps a key to its CDN URL.
func (s *BlobStore) PublicURL(key string) string {
	return s.origin + "/" + strings.TrimLeft(key, "/")
}

// URI returns the gs:// form of key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}
