package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestPutUploadsWithAttributes(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		path string
		body string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		path = r.URL.Path
		body = string(raw)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"bucket":"news-images","name":"rec-1/images/0123456789ab.jpg"}`)
	})
	store := newTestStore(t, handler, Config{Bucket: "news-images", PublicOrigin: "https://cdn.example.net/"})

	err := store.Put(context.Background(), news.Blob{
		Key:          "rec-1/images/0123456789ab.jpg",
		Data:         []byte("jpeg-bytes"),
		ContentType:  "image/jpeg",
		CacheControl: "max-age=31536000",
		Metadata:     map[string]string{"news_id": "rec-1", "environment": "test"},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, path, "/upload/storage/v1/b/news-images/o")
	assert.Contains(t, body, "jpeg-bytes")
	assert.Contains(t, body, `"cacheControl":"max-age=31536000"`)
	assert.Contains(t, body, `"contentType":"image/jpeg"`)
	assert.Contains(t, body, `"news_id":"rec-1"`)
	assert.Contains(t, body, `"name":"rec-1/images/0123456789ab.jpg"`)
}

func TestPutError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, handler, Config{Bucket: "news-images"})

	err := store.Put(context.Background(), news.Blob{Key: "k.jpg", Data: []byte("x"), ContentType: "image/jpeg"})
	require.Error(t, err)

	err = store.Put(context.Background(), news.Blob{Key: "  "})
	require.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	withCDN, err := New(client, Config{Bucket: "news-images", PublicOrigin: "https://cdn.example.net//"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.net/rec-1/images/a.jpg", withCDN.PublicURL("rec-1/images/a.jpg"))

	plain, err := New(client, Config{Bucket: "news-images"})
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/news-images/rec-1/images/a.jpg", plain.PublicURL("rec-1/images/a.jpg"))
	assert.Equal(t, "gs://news-images/rec-1/images/a.jpg", plain.URI("rec-1/images/a.jpg"))
}
