// Package memory keeps records and blobs in process memory for development
// and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

// BlobStore stores image objects in-memory and returns memory:// URLs.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]news.Blob
}

var _ news.BlobSink = (*BlobStore)(nil)

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]news.Blob)}
}

// Put stores a copy of the blob.
func (s *BlobStore) Put(_ context.Context, blob news.Blob) error {
	if strings.TrimSpace(blob.Key) == "" {
		return errors.New("object key is required")
	}
	stored := blob
	stored.Data = append([]byte(nil), blob.Data...)
	if blob.Metadata != nil {
		stored.Metadata = make(map[string]string, len(blob.Metadata))
		for k, v := range blob.Metadata {
			stored.Metadata[k] = v
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[blob.Key] = stored
	return nil
}

// PublicURL returns the pseudo URL for key.
func (s *BlobStore) PublicURL(key string) string {
	return "memory://" + key
}

// Get returns the stored blob for key.
func (s *BlobStore) Get(key string) (news.Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}
